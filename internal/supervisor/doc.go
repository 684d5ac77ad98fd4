// Package supervisor brings up one worker process per configured model and
// owns those processes until shutdown. It is structured into small files by
// concern:
//
//   - supervisor.go: Supervisor, StartAll (sequential, readiness-gated) and StopAll.
//   - registry.go: Registry of WorkerHandles, the only routing table.
//   - launcher.go: Launcher/Process interfaces.
//   - launcher_exec.go: ExecLauncher, which re-executes a worker binary per model.
//   - logwriter.go: forwards worker stdout/stderr into the structured log.
//   - types.go: Phase and per-model status.
//   - errors.go: launch and readiness failures (IsLaunchFailure, IsNotReady).
//   - events.go: EventPublisher and the in-memory publisher used by tests.
//   - metrics.go: Prometheus collectors.
//
// Startup is strictly sequential: model N+1 is not launched until model N has
// reported ready. The first model that fails to become ready halts the
// sequence; models after it are reported as skipped and never launched.
// A model whose process fails to start is skipped and the sequence continues.
package supervisor
