package run

import (
	"time"

	"github.com/John-Robertt/movieharvest/internal/config"
	"github.com/John-Robertt/movieharvest/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnProgress 可能来自 CLI 自己的 ticker goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用："discover"（某年候选列表就绪）与 "year"（某年处理完毕）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某部影片处理完成时调用（added 或 skipped）。
	OnItemDone(idx, total, year int, res domain.ItemResult, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total, added, skipped int, elapsed time.Duration)
}
