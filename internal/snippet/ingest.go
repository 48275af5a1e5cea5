package snippet

import (
	"context"
	"fmt"
)

// IngestDir loads every snippet under dir and adds them to idx.
func IngestDir(ctx context.Context, loader *Loader, idx Indexer, dir string) (*LoadResult, error) {
	result, err := loader.LoadDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	if len(result.Records) == 0 {
		return result, nil
	}
	if err := idx.Add(ctx, result.Records); err != nil {
		return result, fmt.Errorf("failed to add %d snippets: %w", len(result.Records), err)
	}
	return result, nil
}
