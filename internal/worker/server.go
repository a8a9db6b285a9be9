package worker

import (
	"context"
	"errors"
	"net/http"

	"meethub/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// WorkerServer wraps the asynq server that runs background persistence.
type WorkerServer struct {
	server *asynq.Server
	store  AttendanceStore
}

func NewWorkerServer(redisOpt asynq.RedisClientOpt, store AttendanceStore, concurrency int) *WorkerServer {
	if concurrency <= 0 {
		concurrency = 5
	}
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retries, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error().Err(err).
					Str("module", "worker").
					Str("task_id", taskID).
					Str("task_type", task.Type()).
					Int("retries", retries).
					Int("max_retry", maxRetry).
					Msg("task failed")
			}),
		},
	)
	return &WorkerServer{server: server, store: store}
}

// Mux returns the handler routing of the worker.
func (ws *WorkerServer) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeAttendancePersist, NewAttendancePersistenceHandler(ws.store).ProcessTask)
	return mux
}

// Start runs the worker until Shutdown. Call it in its own goroutine.
func (ws *WorkerServer) Start() {
	log.Info().Str("module", "worker").Msg("worker server starting")
	if err := ws.server.Run(ws.Mux()); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			log.Fatal().Err(err).Str("module", "worker").Msg("could not run worker server")
		}
	}
	log.Info().Str("module", "worker").Msg("worker server stopped")
}

func (ws *WorkerServer) Shutdown() {
	ws.server.Shutdown()
}
