package services

import (
	"context"
	"testing"
	"time"

	"guidance-lab/domain"
	errs "guidance-lab/errors"

	"github.com/stretchr/testify/require"
)

func TestPresenceService_ActivateHeartbeatDeactivate(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	req.NoError(f.presenceSvc.Activate(ctx, agent, agent.ID))

	online, err := f.presenceSvc.IsOnline(ctx, agent.ID)
	req.NoError(err)
	req.True(online)

	f.advance(time.Minute)
	req.NoError(f.presenceSvc.Heartbeat(ctx, agent, agent.ID))

	req.NoError(f.presenceSvc.Deactivate(ctx, agent, agent.ID))
	online, err = f.presenceSvc.IsOnline(ctx, agent.ID)
	req.NoError(err)
	req.False(online)
}

func TestPresenceService_StaleHeartbeatsReadOffline(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Given: an agent whose client died without a logout
	req.NoError(f.presenceSvc.Activate(ctx, agent, agent.ID))

	// When: more than the staleness threshold passes without a beat
	f.advance(testStaleness + time.Second)

	// Then: the flag still says online in the store, but the derived
	// check reads offline
	online, err := f.presenceSvc.IsOnline(ctx, agent.ID)
	req.NoError(err)
	req.False(online)

	// And: a fresh beat within the threshold reads online again
	req.NoError(f.presenceSvc.Activate(ctx, agent, agent.ID))
	f.advance(testStaleness - time.Second)
	online, err = f.presenceSvc.IsOnline(ctx, agent.ID)
	req.NoError(err)
	req.True(online)
}

func TestPresenceService_NeverActivated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	online, err := f.presenceSvc.IsOnline(context.Background(), "ghost")
	req.NoError(err)
	req.False(online)
}

func TestPresenceService_Permissions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// Users cannot drive presence at all
	req.ErrorIs(f.presenceSvc.Activate(ctx, requester, agent.ID), errs.ErrForbidden)

	// Agents only manage their own presence
	stranger := domain.Identity{ID: "agent-9", Role: domain.RoleAgent}
	req.ErrorIs(f.presenceSvc.Heartbeat(ctx, stranger, agent.ID), errs.ErrForbidden)

	// Managers force a logout
	req.NoError(f.presenceSvc.Activate(ctx, agent, agent.ID))
	req.NoError(f.presenceSvc.Deactivate(ctx, manager, agent.ID))

	online, err := f.presenceSvc.IsOnline(ctx, agent.ID)
	req.NoError(err)
	req.False(online)
}
