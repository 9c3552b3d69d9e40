package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSequence(t *testing.T) {
	require.Equal(t, HashSequence([]string{"VF", "MF"}), HashSequence([]string{"VF", "MF"}))
	require.NotEqual(t, HashSequence([]string{"VF", "MF"}), HashSequence([]string{"MF", "VF"}))
	require.NotEqual(t, HashSequence([]string{"ab", "c"}), HashSequence([]string{"a", "bc"}))
}

func TestRecoverWithError(t *testing.T) {
	err := panicking()
	require.Error(t, err)
	require.Equal(t, "got panic: boom", err.Error())
}

func panicking() (err error) {
	defer RecoverWithError(&err)
	panic(errors.New("boom"))
}
