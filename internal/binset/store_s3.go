/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package binset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/launix-de/snbayes/internal/trainerr"
)

// S3Store is an alternate ChunkFileStore that spills chunk files to
// S3-compatible object storage instead of local disk, for deployments
// where workers run on ephemeral nodes. S3 has no
// random-access append, so writes are buffered in memory and uploaded
// whole on Close.
type S3Store struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	AccessKeyID    string
	SecretAccess   string
	ForcePathStyle bool

	mu     sync.Mutex
	client *s3.Client
}

func (s *S3Store) ensureClient() *s3.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client
	}
	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, config.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" && s.SecretAccess != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccess, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("binset.S3Store: failed to load AWS config: %v", err))
	}
	var s3Opts []func(*s3.Options)
	if s.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(s.Endpoint) })
	}
	if s.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}
	s.client = s3.NewFromConfig(cfg, s3Opts...)
	return s.client
}

func (s *S3Store) key(path string) string { return s.Prefix + "/" + path }

type s3WriteCloser struct {
	store *S3Store
	path  string
	buf   bytes.Buffer
}

func (w *s3WriteCloser) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3WriteCloser) Close() error {
	client := w.store.ensureClient()
	_, err := client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.store.Bucket),
		Key:    aws.String(w.store.key(w.path)),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return trainerr.IOTransientError{Path: w.path, Op: "s3-put", Err: err}
	}
	return nil
}

func (s *S3Store) Create(path string) (io.WriteCloser, error) {
	return &s3WriteCloser{store: s, path: path}, nil
}

type s3ReaderAt struct {
	store *S3Store
	path  string
}

func (r *s3ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	client := r.store.ensureClient()
	rangeHeader := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	resp, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(r.store.Bucket),
		Key:    aws.String(r.store.key(r.path)),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return 0, trainerr.IOTransientError{Path: r.path, Op: "s3-get", Err: err}
	}
	defer resp.Body.Close()
	return io.ReadFull(resp.Body, p)
}

func (r *s3ReaderAt) Close() error { return nil }

func (s *S3Store) OpenReader(path string) (ReaderAtCloser, error) {
	return &s3ReaderAt{store: s, path: path}, nil
}

func (s *S3Store) Size(path string) (int64, error) {
	client := s.ensureClient()
	resp, err := client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return 0, trainerr.IOTransientError{Path: path, Op: "s3-head", Err: err}
	}
	if resp.ContentLength == nil {
		return 0, nil
	}
	return *resp.ContentLength, nil
}

func (s *S3Store) Remove(path string) error {
	client := s.ensureClient()
	_, err := client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		return trainerr.IOTransientError{Path: path, Op: "s3-delete", Err: err}
	}
	return nil
}
