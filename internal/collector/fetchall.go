package collector

import (
	"context"
	"log"
	"sync"
	"time"
)

// FetchAll 并发抓取所有数据源，每个源独立运行、独立失败。
// 第一个返回值保证每个已注册的源都有一个条目，整体失败的源对应空列表；
// 第二个返回值记录每个失败源的错误，供调用方区分"失败"与"确实没有内容"。
// ceiling 是所有源的整体上限时间，超时后仍在运行的源按失败处理。
func FetchAll(ctx context.Context, fetchers []Fetcher, limit int, ceiling time.Duration) (map[string][]Article, map[string]error) {
	if ceiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ceiling)
		defer cancel()
	}

	results := make(map[string][]Article, len(fetchers))
	for _, f := range fetchers {
		results[f.Name()] = nil
	}
	failures := make(map[string]error)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, f := range fetchers {
		fetcher := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fetcher.Name()
			log.Printf("fetch from %s...", name)

			items, err := fetcher.Fetch(ctx, limit)
			if err != nil {
				log.Printf("fetch %s error: %v", name, err)
				mu.Lock()
				failures[name] = err
				mu.Unlock()
				return
			}
			if len(items) == 0 {
				log.Printf("fetch %s got 0 items", name)
				return
			}
			if len(items) > limit {
				items = items[:limit]
			}

			mu.Lock()
			results[name] = items
			mu.Unlock()
			log.Printf("fetch %s done, got %d items", name, len(items))
		}()
	}
	wg.Wait()

	return results, failures
}
