package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/hibiken/asynq"
)

const (
	TaskTypePasswordReset = "email:password_reset"

	mailQueue    = "mail"
	mailMaxRetry = 5
)

// PasswordResetTask is the queued payload. It carries the token id, so the
// queue's Redis instance must be trusted like the database.
type PasswordResetTask struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	TokenID string `json:"token_id"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier enqueues reset emails for the Worker instead of sending them
// inline, so SMTP latency never reaches the request path.
type QueueNotifier struct {
	client enqueuer
	logger logging.Logger
}

func NewQueueNotifier(client *asynq.Client, logger logging.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, logger: logger.With("module", "mail-queue")}
}

func (q *QueueNotifier) SendPasswordResetEmail(ctx context.Context, user *models.User, tokenID string) error {
	payload, err := json.Marshal(PasswordResetTask{UserID: user.ID, Email: user.Email, TokenID: tokenID})
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx,
		asynq.NewTask(TaskTypePasswordReset, payload),
		asynq.Queue(mailQueue),
		asynq.MaxRetry(mailMaxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue reset email: %w", err)
	}

	q.logger.Debug(ctx, "reset email enqueued", "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Worker drains the mail queue and sends each message with a MailNotifier.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	mailer  *MailNotifier
	logger  logging.Logger
	mu      sync.Mutex
	running bool
}

func NewWorker(redisOpt asynq.RedisConnOpt, mailer *MailNotifier, logger logging.Logger) *Worker {
	logger = logger.With("module", "mail-worker")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				mailQueue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error(ctx, "task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		mailer: mailer,
		logger: logger,
	}
	w.mux.HandleFunc(TaskTypePasswordReset, w.handlePasswordReset)
	return w
}

// Start begins processing tasks in the background. It returns once the
// server's goroutines are running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start mail worker: %w", err)
	}
	w.running = true
	w.logger.Info(ctx, "mail worker started")
	return nil
}

// Stop gracefully shuts down the worker, waiting for in-flight tasks.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
}

func (w *Worker) handlePasswordReset(ctx context.Context, t *asynq.Task) error {
	var task PasswordResetTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// A malformed payload will never succeed.
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return w.mailer.deliver(ctx, task.UserID, task.Email, task.TokenID)
}
