package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionalMutexDisabled(t *testing.T) {
	var mutex OptionalMutex

	mutex.Lock()
	require.True(t, mutex.TryLock())
	mutex.Unlock()
}

func TestOptionalMutexEnabled(t *testing.T) {
	mutex := OptionalMutex{UseMutex: true}

	mutex.Lock()
	require.False(t, mutex.TryLock())
	mutex.Unlock()

	require.True(t, mutex.TryLock())
	mutex.Unlock()
}
