// Package archive packs a session's local results into a zstd-compressed tar
// and uploads it to S3 before the local folder is deleted.
package archive
