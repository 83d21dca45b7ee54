// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Khylle Villasurda

// Package syncer reconciles the local vault against a remote blob store.
//
// The engine works exclusively on ciphertext bundles and manifest metadata:
// the remote never sees plaintext, keys, or KDF parameters, and is never
// asked to compute anything beyond storing blobs.
package syncer

import (
	"context"

	"github.com/KhylleVillasurda/Notequarry/models"
)

// planner builds sync plans. It is stateless: classification is a pure
// in-memory comparison of the local manifest against the remote blob list.
type planner struct{}

// newPlanner constructs a planner ready for use. No dependencies are needed
// because BuildPlan is a stateless, side-effect-free operation.
func newPlanner() *planner {
	return &planner{}
}

// BuildPlan classifies every record into exactly one action.
//
// It builds an O(1) lookup index over the remote list, then makes two linear
// passes:
//
//   - Pass 1 (over the local manifest): handles records known locally,
//     whether or not they also exist remotely.
//   - Pass 2 (over the remote list): catches blobs that exist only remotely
//     and were therefore invisible in pass 1.
//
// ctx cancellation is checked at the start of each iteration so that callers
// can abort early when operating on large vaults.
func (p *planner) BuildPlan(
	ctx context.Context,
	local []models.RecordState,
	remote []models.BlobInfo,
) (models.SyncPlan, error) {
	var plan models.SyncPlan

	remoteIndex := make(map[string]models.BlobInfo, len(remote))
	for _, blob := range remote {
		remoteIndex[blob.ID] = blob
	}

	localIndex := make(map[string]models.RecordState, len(local))
	for _, st := range local {
		localIndex[st.EntryID] = st
	}

	// ── Pass 1: iterate over the local manifest ─────────────────────────────
	for _, st := range local {
		if err := ctx.Err(); err != nil {
			return models.SyncPlan{}, err
		}

		blob, onRemote := remoteIndex[st.EntryID]

		if st.Deleted {
			if onRemote {
				// Tombstone pending propagation: delete the remote blob,
				// then purge locally once the delete is acknowledged.
				plan.DeleteRemote = append(plan.DeleteRemote, st)
			} else {
				// Nothing left to propagate; reclaim the tombstone.
				plan.PurgeLocal = append(plan.PurgeLocal, st)
			}
			continue
		}

		if !onRemote {
			switch {
			case !st.Synced():
				// Live record the remote has never seen → push.
				plan.Push = append(plan.Push, st)
			case st.LocalRev == st.SyncedLocalRev:
				// Previously synced, unchanged locally, blob gone: another
				// replica deleted it → honor the deletion locally.
				plan.PurgeLocal = append(plan.PurgeLocal, st)
			default:
				// Previously synced but edited locally after the remote
				// deletion: the edit wins, re-upload rather than discard.
				plan.Push = append(plan.Push, st)
			}
			continue
		}

		remoteChanged := blob.Revision != st.SyncedRemoteRev
		localChanged := st.LocalRev > st.SyncedLocalRev

		switch {
		case localChanged && remoteChanged:
			// Both replicas advanced past the last-synced markers.
			plan.Conflict = append(plan.Conflict, st)

		case localChanged:
			// Only the local side moved → push, no conflict.
			plan.Push = append(plan.Push, st)

		case remoteChanged:
			// Only the remote side moved → pull, no conflict.
			plan.Pull = append(plan.Pull, st)

			// Neither changed: in sync, no action.
		}
	}

	// ── Pass 2: find remote-only blobs (absent from the local manifest) ─────
	for _, blob := range remote {
		if err := ctx.Err(); err != nil {
			return models.SyncPlan{}, err
		}

		if _, knownLocally := localIndex[blob.ID]; knownLocally {
			continue // handled in pass 1
		}

		plan.Pull = append(plan.Pull, models.RecordState{
			EntryID:        blob.ID,
			SyncedLocalRev: -1,
		})
	}

	return plan, nil
}
