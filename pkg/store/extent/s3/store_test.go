package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed no such key", fmt.Errorf("get: %w", &types.NoSuchKey{}), true},
		{"typed not found", &types.NotFound{}, true},
		{"message", errors.New("api error NoSuchKey: The specified key does not exist"), true},
		{"status", errors.New("operation error S3: GetObject, https response error StatusCode: 404"), true},
		{"other", errors.New("access denied"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestKeyPrefix(t *testing.T) {
	s := New(nil, Config{Bucket: "b", KeyPrefix: "disks/"})
	assert.Equal(t, "disks/hd0/0000000000000003", s.key("hd0", 3))
}
