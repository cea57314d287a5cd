package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// ReadAllWithContext reads src until EOF, checking ctx between chunks.
// sizeHint presizes the buffer; reads beyond MaxUploadSize fail.
func ReadAllWithContext(ctx context.Context, src io.Reader, sizeHint int64) ([]byte, error) {
	var buf bytes.Buffer
	if sizeHint > 0 && sizeHint <= MaxUploadSize {
		buf.Grow(int(sizeHint))
	}
	limited := io.LimitReader(src, MaxUploadSize+1)
	n, err := CopyWithContext(ctx, &buf, limited)
	if err != nil {
		return nil, err
	}
	if n > MaxUploadSize {
		return nil, fmt.Errorf("payload exceeds %d bytes", MaxUploadSize)
	}
	return buf.Bytes(), nil
}

// CopyWithContext copies from src to dst while respecting context cancellation.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 2*1024*1024) // 2MB buffer
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if writeErr == nil {
					writeErr = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
