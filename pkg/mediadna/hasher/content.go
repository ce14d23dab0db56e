package hasher

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

const blockSize = 64 * 1024

// Content hashes the raw bytes with BLAKE2b. It applies to every readable
// file.
type Content struct {
	size int
}

// NewContent returns a content hasher with the given digest size in bytes.
// Zero selects 16 bytes.
func NewContent(size int) *Content {
	if size <= 0 {
		size = 16
	}
	return &Content{size: size}
}

func (c *Content) Name() string { return "content" }

func (c *Content) IsApplicable(ft classify.FileType) bool { return true }

func (c *Content) Hash(ctx context.Context, src Source) (Result, error) {
	h, err := blake2b.New(c.size, nil)
	if err != nil {
		return Result{}, fmt.Errorf("blake2b: %w", err)
	}

	buf := make([]byte, blockSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return Result{}, fmt.Errorf("read %s: %w", src.Name(), rerr)
		}
	}

	return Result{
		Tokens:   []models.Token{{Family: models.FamilyContent, Digest: h.Sum(nil)}},
		Metadata: models.Metadata{models.MetaFileSize: total},
	}, nil
}
