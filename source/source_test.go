package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	raddilog "github.com/raddi-network/raddi/log"
	"github.com/raddi-network/raddi/raddi"
	"github.com/raddi-network/raddi/validator"
)

func TestDispatchRoutesCommandBySize(t *testing.T) {
	var got raddi.Command
	w := &Watcher{
		log: raddilog.NewNoOpLogger(),
		onCommand: func(cmd raddi.Command) error {
			got = cmd
			return nil
		},
	}

	w.dispatch(raddi.EncodeCommand(raddi.Command{Op: raddi.CommandOptimize}))
	require.Equal(t, raddi.CommandOptimize, got.Op)
}

func TestDispatchRoutesEntryBySize(t *testing.T) {
	called := false
	w := &Watcher{
		log: raddilog.NewNoOpLogger(),
		onEntry: func(payload []byte) (validator.Outcome, error) {
			called = true
			return validator.OutcomeRejected, nil
		},
	}

	w.dispatch(make([]byte, validator.MinEntrySize))
	require.True(t, called)
}

func TestDispatchIgnoresTooShort(t *testing.T) {
	w := &Watcher{log: raddilog.NewNoOpLogger()}
	w.dispatch(make([]byte, 1)) // must not panic with nil handlers
}

func TestRunProcessesCreatedFileAndDestroysContent(t *testing.T) {
	dir := t.TempDir()

	var received []byte
	w, err := New(dir, nil, func(cmd raddi.Command) error {
		received = raddi.EncodeCommand(cmd)
		return nil
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		w.Run(stop)
		close(done)
	}()

	path := filepath.Join(dir, "cmd1")
	payload := raddi.EncodeCommand(raddi.Command{Op: raddi.CommandOptimize})
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	require.Eventually(t, func() bool { return received != nil }, 2*time.Second, 10*time.Millisecond)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "intake file should be removed after processing")

	close(stop)
	<-done
}
