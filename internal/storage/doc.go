// Package storage provides the byte stores behind file records: a local
// directory tree for single-node deployments and MinIO or any S3-compatible
// service. Both implement access.BlobStore and address objects by key.
package storage
