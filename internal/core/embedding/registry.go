package embedding

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Factory は Embedder を構築する。構築時の接続確認もここで行う。
type Factory func(ctx context.Context) (Embedder, error)

// Registry はプロセス内で共有する Embedder を遅延初期化して保持する。
//
// 初回の同時呼び出しは singleflight で1回の構築にまとめられ、全員が同じインスタンス
// （または同じエラー）を受け取る。構築失敗はキャッシュしないため、次の Get で再構築を試みる。
type Registry struct {
	factory  Factory
	instance atomic.Pointer[entry]
	group    singleflight.Group
}

type entry struct {
	embedder Embedder
}

const registryKey = "embedder"

// NewRegistry は新しい Registry を作成する
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory}
}

// NewStaticRegistry は構築済みの Embedder を保持する Registry を作成する
func NewStaticRegistry(embedder Embedder) *Registry {
	r := &Registry{
		factory: func(context.Context) (Embedder, error) {
			return embedder, nil
		},
	}
	r.instance.Store(&entry{embedder: embedder})
	return r
}

// Get は共有 Embedder を返す。未構築なら構築する。
func (r *Registry) Get(ctx context.Context) (Embedder, error) {
	if e := r.instance.Load(); e != nil {
		return e.embedder, nil
	}

	// 構築は呼び出し元のキャンセルに巻き込まれないようにする（プローブ側にタイムアウトがある）
	buildCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(registryKey, func() (any, error) {
		if e := r.instance.Load(); e != nil {
			return e.embedder, nil
		}
		embedder, err := r.factory(buildCtx)
		if err != nil {
			return nil, err
		}
		if embedder == nil {
			return nil, errors.New("embedder factory returned nil")
		}
		r.instance.Store(&entry{embedder: embedder})
		return embedder, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Embedder), nil
	}
}

// Reset は保持しているインスタンスを破棄する。次の Get で再構築される。
func (r *Registry) Reset() {
	r.instance.Store(nil)
}
