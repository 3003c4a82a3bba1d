// Package access implements file access control and share-link lifecycle
// management for Secure File Share.
//
// It owns the rules that decide who may download, re-share, delete or
// manage the share link of a file; how bearer credentials are verified
// and resolved to an identity; how share tokens are minted, expired and
// redeemed into standing grants; and how file records are created and
// deleted alongside their stored bytes.
//
// Persistence is injected through the UserStore, FileStore and BlobStore
// interfaces. The HTTP layer in internal/server is the only caller and
// never mutates grants, tokens or expiries directly.
package access
