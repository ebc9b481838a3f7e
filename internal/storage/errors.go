package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ErrObjectNotFound is returned by ReadObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

var (
	missingKeyCodes    = []string{"nosuchkey", "notfound"}
	missingBucketCodes = []string{"nosuchbucket"}
)

// IsNoSuchKey reports whether err means the object is absent.
func IsNoSuchKey(err error) bool {
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	return matchesCode(err, missingKeyCodes, "specified key does not exist")
}

// IsNoSuchBucket reports whether err means the bucket is absent.
func IsNoSuchBucket(err error) bool {
	return matchesCode(err, missingBucketCodes, "specified bucket does not exist")
}

// matchesCode 先比对 S3 错误码；部分网关只返回字符串错误，再兜底匹配文本。
func matchesCode(err error, codes []string, message string) bool {
	if err == nil {
		return false
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		code := strings.ToLower(strings.TrimSpace(resp.Code))
		for _, c := range codes {
			if code == c {
				return true
			}
		}
		if code != "" {
			return false
		}
	}
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, message) {
		return true
	}
	for _, c := range codes {
		if c != "notfound" && strings.Contains(lower, c) {
			return true
		}
	}
	return false
}
