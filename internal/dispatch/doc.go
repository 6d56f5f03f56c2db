// Package dispatch schedules migration runs in the background.
//
// # Queue
//
// [Queue] feeds migration IDs to a fixed pool of workers through a bounded channel. A rate limiter
// spaces out run starts and a migration is never queued twice. Each run gets a soft deadline; a run that
// yields at its deadline is queued again right away.
//
// # Retries
//
// Runs failing with [shared.ErrRunTransient] are retried with exponential backoff. Once the attempts
// are exhausted the migration is marked failed. Fatal errors are never retried.
//
// # Sweeper
//
// [Sweeper] periodically re-queues pending migrations and in_progress migrations whose record has not
// moved for a while, which covers runs lost to a restart.
//
// # Webhook
//
// External schedulers can trigger a run by POSTing a signed [WebhookPayload]; see [VerifySignature].
package dispatch
