package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAttachesAndEnablesDomains(t *testing.T) {
	fc := newFakeChrome()
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.NoError(t, err)
	defer sess.Close(context.Background())

	assert.True(t, sess.Attached())
	assert.Equal(t, "target-1", sess.TargetID())
	assert.Equal(t, "session-for-target-1", sess.ID())
	assert.Equal(t, 1, fc.callCount("Page.enable"))
	assert.Equal(t, 1, fc.callCount("Runtime.enable"))
	assert.Equal(t, 1, fc.callCount("DOM.enable"))
}

func TestOpenReportsCreateTargetFailure(t *testing.T) {
	fc := newFakeChrome()
	fc.fail("Target.createTarget", "browser out of memory")
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.Nil(t, sess)

	var aerr *AttachError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "createTarget", aerr.Stage)
}

func TestOpenDiscardsTargetWhenAttachFails(t *testing.T) {
	fc := newFakeChrome()
	fc.fail("Target.attachToTarget", "target crashed")
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.Nil(t, sess)

	var aerr *AttachError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "attachToTarget", aerr.Stage)
	assert.Equal(t, "target-1", aerr.TargetID)
	assert.Equal(t, 1, fc.callCount("Target.closeTarget"), "half-built target must be cleaned up")
}

func TestOpenTearsDownWhenDomainEnableFails(t *testing.T) {
	fc := newFakeChrome()
	fc.fail("Runtime.enable", "domain unavailable")
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.Nil(t, sess)

	var aerr *AttachError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Runtime.enable", aerr.Stage)
	assert.Equal(t, 1, fc.callCount("Target.detachFromTarget"))
	assert.Equal(t, 1, fc.callCount("Target.closeTarget"))
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	fc := newFakeChrome()
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.NoError(t, err)

	ctx := context.Background()
	sess.Close(ctx)
	sess.Close(ctx)
	sess.Close(ctx)

	assert.False(t, sess.Attached())
	assert.Equal(t, 1, fc.callCount("Target.detachFromTarget"), "detach must happen exactly once")
	assert.Equal(t, 1, fc.callCount("Target.closeTarget"))
}

func TestSessionCloseSwallowsBrowserErrors(t *testing.T) {
	fc := newFakeChrome()
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.NoError(t, err)

	fc.fail("Target.detachFromTarget", "already detached")
	fc.fail("Target.closeTarget", "no such target")
	sess.Close(context.Background())
	assert.False(t, sess.Attached())
}

func TestOperationsAfterCloseReturnNotAttached(t *testing.T) {
	fc := newFakeChrome()
	m := newTestManager(t, fc, testNetworkConfig())

	sess, err := m.Open(context.Background())
	require.NoError(t, err)
	sess.Close(context.Background())

	ctx := context.Background()
	var naerr *NotAttachedError

	err = sess.Goto(ctx, "https://example.com", GotoOptions{})
	require.ErrorAs(t, err, &naerr)

	_, err = sess.Text(ctx, "body")
	require.ErrorAs(t, err, &naerr)

	_, err = sess.Evaluate(ctx, "1 + 1")
	require.ErrorAs(t, err, &naerr)

	err = sess.WaitForSelector(ctx, "body", WaitOptions{})
	require.ErrorAs(t, err, &naerr)
}
