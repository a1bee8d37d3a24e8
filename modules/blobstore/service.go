package blobstore

import (
	"context"
	"time"

	"github.com/example/asset-vault/modules/assets"
)

// Service is the storage collaborator: it signs time-boxed upload and
// download authorizations and moves raw bytes in and out of the object
// store. It satisfies the assets module's BlobStore port.
type Service struct {
	store  *JetStreamStore
	signer *URLSigner
}

// Compile-time port check.
var _ assets.BlobStore = (*Service)(nil)

// NewService creates a blobstore service.
func NewService(store *JetStreamStore, signer *URLSigner) *Service {
	return &Service{store: store, signer: signer}
}

// SignUpload returns a time-boxed URL authorizing a raw write to path.
func (s *Service) SignUpload(path string, ttl time.Duration) (assets.SignedURL, error) {
	signed, expiresAt, err := s.signer.Sign(OpUpload, path, ttl)
	if err != nil {
		return assets.SignedURL{}, err
	}
	return assets.SignedURL{URL: signed, ExpiresAt: expiresAt}, nil
}

// SignDownload returns a time-boxed URL authorizing a read of path.
func (s *Service) SignDownload(path string, ttl time.Duration) (assets.SignedURL, error) {
	signed, expiresAt, err := s.signer.Sign(OpDownload, path, ttl)
	if err != nil {
		return assets.SignedURL{}, err
	}
	return assets.SignedURL{URL: signed, ExpiresAt: expiresAt}, nil
}

// Read fetches the stored bytes at path.
func (s *Service) Read(ctx context.Context, path string) ([]byte, error) {
	data, _, err := s.store.Get(ctx, path)
	return data, err
}

// Remove deletes the stored object at path.
func (s *Service) Remove(ctx context.Context, path string) error {
	return s.store.Delete(ctx, path)
}

// AcceptUpload verifies an upload token and stores the request body at the
// path the token authorizes. Called by the raw upload endpoint.
func (s *Service) AcceptUpload(ctx context.Context, tokenString string, data []byte, contentType string) (string, error) {
	path, err := s.signer.Verify(OpUpload, tokenString)
	if err != nil {
		return "", err
	}
	if _, err := s.store.Put(ctx, path, data, contentType); err != nil {
		return "", err
	}
	return path, nil
}

// ServeDownload verifies a download token and returns the stored bytes with
// their metadata. Called by the raw download endpoint.
func (s *Service) ServeDownload(ctx context.Context, tokenString string) ([]byte, *ObjectInfo, error) {
	path, err := s.signer.Verify(OpDownload, tokenString)
	if err != nil {
		return nil, nil, err
	}
	return s.store.Get(ctx, path)
}
