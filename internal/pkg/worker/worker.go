package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
	"order_core/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Job 周期任务
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker 多副本部署时保证同一任务同一周期只有一个副本执行
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// LocalLocker 单实例部署，总是拿到锁
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, time.Duration) (bool, error) { return true, nil }

// RedisLocker SET NX PX。不主动释放，TTL 与任务周期一致，到期即进入下一轮竞争
type RedisLocker struct {
	rdb   *redis.Client
	owner string
}

func NewRedisLocker(rdb *redis.Client, owner string) *RedisLocker {
	return &RedisLocker{rdb: rdb, owner: owner}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
}

type Scheduler struct {
	locker       Locker
	jobs         []Job
	MaxRetry     int           // 单轮最大重试次数
	RetryBackoff time.Duration // 第 n 次重试前等待 n*RetryBackoff

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

func NewScheduler(locker Locker) *Scheduler {
	if locker == nil {
		locker = LocalLocker{}
	}
	return &Scheduler{
		locker:       locker,
		MaxRetry:     3,
		RetryBackoff: time.Second,
	}
}

// Register 必须在 Start 之前调用
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			logger.Log.Warn("job disabled, non-positive interval", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	logger.Log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop 取消所有任务并等待正在执行的一轮结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx, job)
		}
	}
}

// RunOnce 抢锁并执行一轮，失败按线性退避重试，超过次数后放弃本轮等待下个周期
func (s *Scheduler) RunOnce(ctx context.Context, job Job) error {
	ok, err := s.locker.TryLock(ctx, lockKey(job.Name), job.Interval)
	if err != nil {
		logger.Log.Warn("job lock failed", zap.String("job", job.Name), zap.Error(err))
		return err
	}
	if !ok {
		logger.Log.Debug("job held by another replica", zap.String("job", job.Name))
		return nil
	}

	for attempt := 0; ; attempt++ {
		start := time.Now()
		err = job.Run(ctx)
		if err == nil {
			logger.Log.Debug("job finished", zap.String("job", job.Name), zap.Duration("cost", time.Since(start)))
			return nil
		}
		if attempt >= s.MaxRetry {
			logger.Log.Error("job exceeded max retries",
				zap.String("job", job.Name),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return err
		}
		logger.Log.Warn("job failed, retrying",
			zap.String("job", job.Name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * s.RetryBackoff):
		}
	}
}

func lockKey(name string) string {
	return fmt.Sprintf("scheduler:lock:%s", name)
}
