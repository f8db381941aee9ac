package crypto

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// blockOp runs one independent single-block public-key operation.
type blockOp func(block []byte) ([]byte, error)

// chunkPipeline drives a single-block operation over payloads of arbitrary length.
type chunkPipeline struct {
	// workers bounds concurrent block operations; 1 runs sequentially.
	workers int
}

// split cuts data into successive chunks of at most size bytes.
// With exact set, a short final chunk is an error.
func split(data []byte, size int, exact bool) ([][]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrUnsupported, size)
	}
	if exact && len(data)%size != 0 {
		return nil, fmt.Errorf("%w: input of %d bytes is not a multiple of the %d-byte block", ErrUnsupportedValue, len(data), size)
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		chunks = append(chunks, data[off:end])
	}
	return chunks, nil
}

// run applies op to every chunk and concatenates the results in input order.
// Any failure aborts the pipeline and no output is returned.
func (p chunkPipeline) run(data []byte, size int, exact bool, op blockOp) (BinaryData, error) {
	if len(data) == 0 {
		if size <= 0 {
			return BinaryData{}, fmt.Errorf("%w: chunk size %d", ErrUnsupported, size)
		}
		return BinaryData{b: []byte{}}, nil
	}

	chunks, err := split(data, size, exact)
	if err != nil {
		return BinaryData{}, err
	}

	results := make([][]byte, len(chunks))

	if p.workers <= 1 || len(chunks) == 1 {
		for i, c := range chunks {
			out, err := op(c)
			if err != nil {
				return BinaryData{}, fmt.Errorf("block %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = out
		}
		return concat(results), nil
	}

	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(p.workers)
	for i, c := range chunks {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			out, err := op(c)
			if err != nil {
				return fmt.Errorf("block %d/%d: %w", i+1, len(chunks), err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			wipe(r)
		}
		return BinaryData{}, err
	}
	return concat(results), nil
}
