package minio

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/NERRecon/pkg/errors"
)

type RepositoryTestSuite struct {
	suite.Suite
	api  *MockObjectAPI
	repo *SetRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	s.api = new(MockObjectAPI)
	s.ctx = context.Background()
	client := newClient(s.api, &MinIOConfig{Bucket: "sets", Prefix: "runs"}, nil)
	s.repo = NewSetRepository(client, nil)
}

func (s *RepositoryTestSuite) TestWrite() {
	s.api.On("PutObject", s.ctx, "sets", "runs/out/e1.json", mock.Anything, int64(2), jsonContentType).Return(nil)

	s.NoError(s.repo.Write(s.ctx, "/out/e1.json", []byte("{}")))
	s.api.AssertExpectations(s.T())
}

func (s *RepositoryTestSuite) TestWrite_Error() {
	s.api.On("PutObject", s.ctx, "sets", "runs/e1.json", mock.Anything, int64(2), jsonContentType).Return(fmt.Errorf("denied"))

	err := s.repo.Write(s.ctx, "e1.json", []byte("{}"))
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *RepositoryTestSuite) TestRead() {
	s.api.On("GetObject", s.ctx, "sets", "runs/e1.json").Return(io.NopCloser(strings.NewReader(`{"1":{}}`)), nil)

	data, err := s.repo.Read(s.ctx, "e1.json")
	s.NoError(err)
	s.Equal(`{"1":{}}`, string(data))
}

func (s *RepositoryTestSuite) TestRead_NotFound() {
	s.api.On("GetObject", s.ctx, "sets", "runs/missing.json").Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

	_, err := s.repo.Read(s.ctx, "missing.json")
	s.True(errors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestExists() {
	s.api.On("StatObject", s.ctx, "sets", "runs/a.json").Return(minio.ObjectInfo{Key: "runs/a.json"}, nil)
	s.api.On("StatObject", s.ctx, "sets", "runs/b.json").Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	s.api.On("StatObject", s.ctx, "sets", "runs/c.json").Return(minio.ObjectInfo{}, fmt.Errorf("boom"))

	ok, err := s.repo.Exists(s.ctx, "a.json")
	s.NoError(err)
	s.True(ok)

	ok, err = s.repo.Exists(s.ctx, "b.json")
	s.NoError(err)
	s.False(ok)

	_, err = s.repo.Exists(s.ctx, "c.json")
	s.Error(err)
}

func (s *RepositoryTestSuite) TestList() {
	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "runs/preds/b.json"}
	ch <- minio.ObjectInfo{Key: "runs/preds/a.json"}
	close(ch)
	s.api.On("ListObjects", s.ctx, "sets", "runs/preds").Return((<-chan minio.ObjectInfo)(ch))

	keys, err := s.repo.List(s.ctx, "preds")
	s.NoError(err)
	s.Equal([]string{"preds/a.json", "preds/b.json"}, keys)
}

func (s *RepositoryTestSuite) TestList_Error() {
	ch := make(chan minio.ObjectInfo, 1)
	ch <- minio.ObjectInfo{Err: fmt.Errorf("access denied")}
	close(ch)
	s.api.On("ListObjects", s.ctx, "sets", "runs/preds").Return((<-chan minio.ObjectInfo)(ch))

	_, err := s.repo.List(s.ctx, "preds")
	s.Error(err)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

//Personal.AI order the ending
