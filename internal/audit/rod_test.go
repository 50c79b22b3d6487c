package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNavigationErr(t *testing.T) {
	parent := context.Background()

	assert.NoError(t, navigationErr(parent, parent, time.Second, nil))

	boom := errors.New("net::ERR_CONNECTION_REFUSED")
	assert.ErrorIs(t, navigationErr(parent, parent, time.Second, boom), boom)

	expired, cancel := context.WithTimeout(parent, time.Nanosecond)
	defer cancel()
	<-expired.Done()
	assert.EqualError(t, navigationErr(parent, expired, 5*time.Millisecond, nil),
		"DOMContentLoaded not reached within 5ms")

	cancelled, stop := context.WithCancel(parent)
	stop()
	nav, navCancel := context.WithTimeout(cancelled, time.Hour)
	defer navCancel()
	assert.ErrorIs(t, navigationErr(cancelled, nav, time.Hour, nil), context.Canceled)
}
