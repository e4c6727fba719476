package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/LJTian/BriefingHub/internal/pipeline"
	"github.com/robfig/cron/v3"
)

// Runner 可被定时触发的管道，由 pipeline.Pipeline 实现
type Runner interface {
	Run(ctx context.Context) pipeline.Outcome
}

// Scheduler 按 cron 表达式触发每日简报管道
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
}

// New 注册定时任务；spec 是标准的 5 段 cron 表达式（如 "0 9 * * *"）
func New(spec string, runner Runner, timeout time.Duration) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:    c,
		runner:  runner,
		timeout: timeout,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("scheduler started")
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发简报生成
func (s *Scheduler) RunOnce() pipeline.Outcome {
	return s.run()
}

func (s *Scheduler) runOnce() {
	s.run()
}

func (s *Scheduler) run() pipeline.Outcome {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out := s.runner.Run(ctx)
	if out.Status == pipeline.StatusFailed {
		log.Printf("scheduled briefing run failed: %v", out.Errors)
	}
	return out
}
