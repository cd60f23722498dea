package storage

import (
	"context"

	"github.com/dmitrijs2005/dulo/internal/filex"
)

// LocalSink writes objects under Dir, creating it on demand.
type LocalSink struct {
	Dir string
}

func NewLocalSink(dir string) *LocalSink {
	return &LocalSink{Dir: dir}
}

func (s *LocalSink) Save(ctx context.Context, obj Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return filex.WriteFile(s.Dir, obj.Name, obj.Data)
}
