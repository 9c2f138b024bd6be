package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"course_checkout/pkg/logger"
	"course_checkout/pkg/metrics"

	"go.uber.org/zap"
)

// Task 清算后的单个下游副作用
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result 带标签的任务结果，只用于记录，从不向回调响应路径传播
type Result struct {
	Name string
	Err  error
}

// Orchestrator 清算后编排器
// 每次清算派发一批任务：批内并发执行、逐个限时、失败只记录；
// 批本身在后台运行，不阻塞回调应答，但进程退出前 Wait 会等所有批次落地
type Orchestrator struct {
	taskTimeout time.Duration
	wg          sync.WaitGroup
}

// Global 由清算模块在初始化时赋值，main 在停机路径调用 Wait
var Global *Orchestrator

func New(taskTimeout time.Duration) *Orchestrator {
	return &Orchestrator{taskTimeout: taskTimeout}
}

// Dispatch 派发一批任务并立即返回
func (o *Orchestrator) Dispatch(paymentID string, tasks ...Task) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		results := o.runBatch(tasks)
		for _, r := range results {
			if r.Err != nil {
				metrics.OrchestratorTasks.WithLabelValues(r.Name, "failure").Inc()
				logger.Log.Error("post-settlement task failed",
					zap.String("payment_id", paymentID),
					zap.String("task", r.Name),
					zap.Error(r.Err))
			} else {
				metrics.OrchestratorTasks.WithLabelValues(r.Name, "success").Inc()
			}
		}
	}()
}

// runBatch 并发执行并等全部结束，单个任务限时，panic 也折算成失败结果
func (o *Orchestrator) runBatch(tasks []Task) []Result {
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), o.taskTimeout)
			defer cancel()
			results[i] = Result{Name: t.Name, Err: o.runOne(ctx, t)}
		}(i, task)
	}

	wg.Wait()
	return results
}

func (o *Orchestrator) runOne(ctx context.Context, t Task) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("task panicked: %v", rec)
			}
		}()
		done <- t.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		// 任务协程可能还在收尾，但批次不再等它，慢依赖不能拖垮同批其他任务
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Wait 等待所有已派发的批次完成，停机前调用
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
