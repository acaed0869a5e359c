// Package service 引导去重缓存
package service

import (
	"context"
	"sync"
	"time"
)

// flightCall 一次进行中或刚完成的引导调用
type flightCall struct {
	done   chan struct{}
	result *SessionResult
	err    error
}

// FlightGroup 按 (用户, 登录事件) 键合并并发的会话引导请求
// 同一键的并发调用只执行一次 fn，后来者等待同一结果；这是防止两个请求
// 同时改写同一用户临时凭据的唯一串行化机制。仅进程内有效，多实例部署
// 需要换成按相同键取的外部互斥原语
type FlightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
	grace time.Duration
}

// NewFlightGroup 创建引导去重缓存
// grace 为成功结果的保留时间，用于吸收几乎同时到达的重复请求
func NewFlightGroup(grace time.Duration) *FlightGroup {
	if grace <= 0 {
		grace = time.Second
	}
	return &FlightGroup{
		calls: make(map[string]*flightCall),
		grace: grace,
	}
}

// RunExclusive 以 key 为单位串行执行 fn
// 成功的条目在宽限期后移除；失败的条目立即移除，不阻塞合法重试
func (g *FlightGroup) RunExclusive(ctx context.Context, key string, fn func() (*SessionResult, error)) (*SessionResult, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.result, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &flightCall{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	c.result, c.err = fn()
	close(c.done)

	if c.err != nil {
		g.mu.Lock()
		if g.calls[key] == c {
			delete(g.calls, key)
		}
		g.mu.Unlock()
	} else {
		time.AfterFunc(g.grace, func() {
			g.mu.Lock()
			if g.calls[key] == c {
				delete(g.calls, key)
			}
			g.mu.Unlock()
		})
	}

	return c.result, c.err
}

// Pending 返回当前在途条目数
func (g *FlightGroup) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
