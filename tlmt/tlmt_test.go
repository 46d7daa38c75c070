package tlmt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seismolink/siteapi/tlmt"
	"github.com/seismolink/siteapi/tlmt/gonoop"
)

func TestNewEvent(t *testing.T) {
	ev := tlmt.NewEvent(tlmt.EventPageView, nil)
	assert.Equal(t, "page_view", ev.Name)
	assert.NotNil(t, ev.Properties)
	assert.Empty(t, ev.DistinctID)

	withID := ev.WithDistinctID("visitor-1")
	assert.Equal(t, "visitor-1", withID.DistinctID)
	assert.Empty(t, ev.DistinctID)
}

func TestNoop(t *testing.T) {
	svc := gonoop.New()
	assert.NoError(t, svc.Send(context.Background(), tlmt.NewEvent("x", nil)))
	assert.NoError(t, svc.Close())
}
