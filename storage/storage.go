// Package storage persists index snapshots as files on local disk or in an
// S3-compatible object store behind one FileStore interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. Missing files yield an error
	// wrapping os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, replacing existing content
	// once the writer is closed successfully.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file; missing files are not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Aborter is implemented by writers that can discard everything written so
// far instead of committing it on Close.
type Aborter interface {
	Abort() error
}

// Abort discards w when it supports aborting and closes it otherwise.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

var errAborted = errors.New("storage: write aborted")

// Config selects and configures a FileStore backend.
type Config struct {
	// Kind is "local" (default) or "s3".
	Kind string `yaml:"kind" toml:"kind"`
	// Dir is the root directory for local storage.
	Dir string `yaml:"dir" toml:"dir"`
	// Bucket, Prefix, Region and Endpoint configure S3 storage. Endpoint is
	// optional and enables path-style addressing for S3-compatible servers.
	Bucket   string `yaml:"bucket" toml:"bucket"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
	Region   string `yaml:"region" toml:"region"`
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
}

// New builds the FileStore described by cfg. S3 credentials are taken from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
func New(cfg Config) (FileStore, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "local":
		dir := cfg.Dir
		if dir == "" {
			dir = "snapshots"
		}
		return NewLocal(dir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 bucket is required")
		}
		opts := s3.Options{
			Region:      cfg.Region,
			Credentials: aws.NewCredentialsCache(envCredentials()),
		}
		if cfg.Endpoint != "" {
			opts.BaseEndpoint = aws.String(cfg.Endpoint)
			opts.UsePathStyle = true
		}
		return NewS3(s3.New(opts), cfg.Bucket, cfg.Prefix), nil
	}
	return nil, fmt.Errorf("storage: unknown kind %q", cfg.Kind)
}

func envCredentials() aws.CredentialsProviderFunc {
	return func(context.Context) (aws.Credentials, error) {
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if id == "" || secret == "" {
			return aws.Credentials{}, fmt.Errorf("storage: AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
			Source:          "environment",
		}, nil
	}
}
