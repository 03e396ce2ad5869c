package kvdb

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("key not found")
	ErrInvalidKey     = errors.New("invalid key")
	ErrBucketNotFound = errors.New("bucket not found")
)

// InvalidKeyError is returned before a transaction is opened, so it never reaches bbolt.
type InvalidKeyError struct {
	Bucket string
	Key    string
	Reason string
}

type NotFoundError struct {
	Bucket string
	Key    string
}

// BucketNotFoundError means the bucket was not created when the database was opened.
type BucketNotFoundError struct {
	Bucket string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %q in bucket %s: %s", e.Key, e.Bucket, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key %s not found in bucket %s", e.Key, e.Bucket)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *BucketNotFoundError) Error() string {
	return fmt.Sprintf("bucket %s not found", e.Bucket)
}

func (e *BucketNotFoundError) Is(target error) bool {
	return target == ErrBucketNotFound
}
