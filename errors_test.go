package shikijin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotFoundFamily(t *testing.T) {
	tid, bid, aid := NewTaskID(), NewBlobID(), NewAssignmentID()
	cases := []struct {
		err  error
		kind error
		id   string
	}{
		{TaskNotFound(tid), ErrTaskNotFound, tid.String()},
		{BlobNotFound(bid), ErrBlobNotFound, bid.String()},
		{AssignmentNotFound(aid), ErrAssignmentNotFound, aid.String()},
	}
	for _, c := range cases {
		require.ErrorIs(t, c.err, c.kind)
		require.ErrorIs(t, c.err, ErrNotFound)
		var nf *NotFoundError
		require.True(t, errors.As(fmt.Errorf("wrapped: %w", c.err), &nf))
		require.Equal(t, c.id, nf.ID)
		require.Contains(t, c.err.Error(), c.id)
	}
	require.NotErrorIs(t, TaskNotFound(tid), ErrBlobNotFound)
	require.Equal(t, "shikijin: task not found", (&NotFoundError{Kind: ErrTaskNotFound}).Error())
}

func TestAssignmentConflict(t *testing.T) {
	id := NewTaskID()
	err := AssignmentConflict(id)
	require.ErrorIs(t, err, ErrAssignmentConflict)
	require.Contains(t, err.Error(), id.String())
}

func TestTaskError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&TaskError{TaskID: NewTaskID(), AssignmentID: NewAssignmentID(), Err: cause})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "boom")
}
