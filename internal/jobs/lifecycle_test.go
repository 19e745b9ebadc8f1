package jobs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocalizz/internal/domain"
)

func TestScenarioCSubmissionFailureCompensates(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	assert.Equal(t, 2, h.store.Account(testAccount).CreditBalance)

	h.provider.createErr = errors.New("dial tcp: connection refused")
	_, err := h.submitter.Submit(h.ctx, job.ID)

	var sfe *domain.SubmissionFailedError
	require.ErrorAs(t, err, &sfe)
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Contains(t, sfe.Reason, "connection refused")

	acct := h.store.Account(testAccount)
	assert.Equal(t, 5, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)

	failed := h.store.Job(job.ID)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	assert.Equal(t, "dial tcp: connection refused", failed.ErrorDetail)
	assert.Empty(t, failed.ExternalHandle)
	assert.Empty(t, h.artifacts(t, job.SourceArtifactPath))
	assert.Equal(t, []domain.JobStatus{domain.JobStatusFailed}, h.events.statuses())
}

func TestScenarioDProviderFailureRefunds(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)

	submitted, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, submitted.Status)
	assert.Equal(t, "pred-1", submitted.ExternalHandle)
	require.Len(t, h.provider.created, 1)
	assert.Equal(t, domain.EpochsStandard, h.provider.created[0].Epochs)
	assert.True(t, h.provider.created[0].Cleaning)
	assert.Contains(t, h.provider.created[0].SourceURL, "/v1/files/acct-1/ma_voix/take1.wav")

	ack, err := h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "failed", Error: "CUDA out of memory"})
	require.NoError(t, err)
	assert.Equal(t, Ack{JobID: job.ID, Outcome: AckFailed}, ack)

	acct := h.store.Account(testAccount)
	assert.Equal(t, 5, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)
	assert.Equal(t, "CUDA out of memory", h.store.Job(job.ID).ErrorDetail)
	assert.Empty(t, h.artifacts(t, job.SourceArtifactPath))
}

func TestScenarioEManualCancelOfStuckJob(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)
	h.store.Backdate(job.ID, time.Now().Add(-45*time.Minute))
	assert.True(t, domain.IsStale(h.store.Job(job.ID), time.Now()))

	cancelled, err := h.canceller.Cancel(h.ctx, CancelRequest{
		JobID:       job.ID,
		RequestedBy: Principal{AccountID: testAccount},
		Reason:      CancelManual,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, cancelled.Status)
	assert.Equal(t, "cancelled by user", cancelled.ErrorDetail)

	acct := h.store.Account(testAccount)
	assert.Equal(t, 5, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)
	assert.Equal(t, []string{"pred-1"}, h.provider.cancelled, "provider cancel is attempted; its failure is ignored")
}

func TestScenarioFCompletedRedeliveryIsNoop(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)

	n := Notification{ExternalHandle: "pred-1", Status: "succeeded", OutputRefs: map[string]string{"voice_id": "voice-42"}}
	ack, err := h.reconciler.OnProviderNotification(h.ctx, n)
	require.NoError(t, err)
	assert.Equal(t, AckCompleted, ack.Outcome)

	before := h.store.Account(testAccount)
	assert.Equal(t, 2, before.CreditBalance, "completion never refunds")
	assert.Equal(t, 0, before.ActiveJobCount)
	assert.Equal(t, "voice-42", h.store.Job(job.ID).VoiceID())
	assert.Empty(t, h.artifacts(t, job.SourceArtifactPath))

	ack, err = h.reconciler.OnProviderNotification(h.ctx, n)
	require.NoError(t, err)
	assert.Equal(t, AckDuplicate, ack.Outcome)
	assert.Equal(t, before, h.store.Account(testAccount))
}

func TestReconcilerConcurrentFailureRedeliveryRefundsOnce(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	outcomes := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ack, err := h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "failed"})
			if err == nil {
				outcomes <- ack.Outcome
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	failed := 0
	for o := range outcomes {
		if o == AckFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	acct := h.store.Account(testAccount)
	assert.Equal(t, 5, acct.CreditBalance)
	assert.Equal(t, 0, acct.ActiveJobCount)

	refunds := 0
	for _, tx := range h.store.Transactions(testAccount) {
		if tx.Kind == "refund" {
			refunds++
		}
	}
	assert.Equal(t, 1, refunds)
}

func TestReconcilerIgnoresIntermediateAndUnknown(t *testing.T) {
	h := newHarness(t, basicAccount(5))

	ack, err := h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "processing"})
	require.NoError(t, err)
	assert.Equal(t, AckIgnored, ack.Outcome)

	ack, err = h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "deleted", Status: "succeeded"})
	require.NoError(t, err)
	assert.Equal(t, AckUnknown, ack.Outcome)
}

func TestReconcilerDoesNotResurrectDeletedJob(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)
	h.store.DeleteJob(job.ID)

	ack, err := h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "succeeded"})
	require.NoError(t, err)
	assert.Equal(t, AckUnknown, ack.Outcome)
}

func TestTerminalImmutability(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)
	_, err = h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "succeeded"})
	require.NoError(t, err)
	completed := h.store.Job(job.ID)

	ack, err := h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: "failed", Error: "late failure"})
	require.NoError(t, err)
	assert.Equal(t, AckDuplicate, ack.Outcome)

	_, err = h.canceller.Cancel(h.ctx, CancelRequest{JobID: job.ID, RequestedBy: Principal{AccountID: testAccount}, Reason: CancelManual})
	assert.ErrorIs(t, err, domain.ErrJobTerminal)

	changed, _, err := h.compensator.Compensate(h.ctx, job.ID, "again", true)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, changed.Status)

	after := h.store.Job(job.ID)
	assert.Equal(t, completed.Status, after.Status)
	assert.Equal(t, completed.CostInCredits, after.CostInCredits)
	assert.Equal(t, completed.ErrorDetail, after.ErrorDetail)
	assert.Equal(t, 2, h.store.Account(testAccount).CreditBalance)
}

func TestReservationRefundSymmetry(t *testing.T) {
	for _, status := range []string{"failed", "canceled"} {
		t.Run(status, func(t *testing.T) {
			h := newHarness(t, domain.Account{ID: testAccount, Tier: domain.TierPremium, CreditBalance: 11})
			job := h.reserveTraining(t)
			_, err := h.submitter.Submit(h.ctx, job.ID)
			require.NoError(t, err)
			_, err = h.reconciler.OnProviderNotification(h.ctx, Notification{ExternalHandle: "pred-1", Status: status})
			require.NoError(t, err)
			assert.Equal(t, 11, h.store.Account(testAccount).CreditBalance)
		})
	}
}

func TestSubmitWithoutSourceAudioFails(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job, err := h.guard.Reserve(h.ctx, billingTraining("empty/"), domain.DefaultPricingPolicy())
	require.NoError(t, err)

	_, err = h.submitter.Submit(h.ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Empty(t, h.provider.created, "provider must not be called without source audio")
	assert.Equal(t, 5, h.store.Account(testAccount).CreditBalance)
}

func TestSubmitRejectsNonQueuedJob(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	_, err := h.submitter.Submit(h.ctx, job.ID)
	require.NoError(t, err)

	_, err = h.submitter.Submit(h.ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobNotQueued)
	assert.Len(t, h.provider.created, 1)
}

func TestSubmitCancelledDuringProviderCall(t *testing.T) {
	h := newHarness(t, basicAccount(5))
	job := h.reserveTraining(t)
	h.provider.onCreate = func() {
		_, err := h.canceller.Cancel(h.ctx, CancelRequest{JobID: job.ID, RequestedBy: Principal{AccountID: testAccount}})
		require.NoError(t, err)
	}

	current, err := h.submitter.Submit(h.ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrJobTerminal)
	assert.Equal(t, domain.JobStatusFailed, current.Status)
	assert.Equal(t, []string{"pred-1"}, h.provider.cancelled)
	assert.Equal(t, 5, h.store.Account(testAccount).CreditBalance)
}
