package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/metrics"
	"github.com/hewenyu/dedi-console/pkg/model"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

const fetchFallback = "Failed to fetch namespaces"

// FetchNamespaces 获取命名空间目录并替换当前状态
// 服务端返回"No namespaces found"时视为空目录，不返回错误
// 其他非成功消息返回ServerError，当前状态保持不变
// 并发调用共享同一次请求，共享的请求不随单个调用方取消
func (d *Dashboard) FetchNamespaces(ctx context.Context) (model.Directory, error) {
	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan("directory", func() (any, error) {
		return d.fetch(shared)
	})

	select {
	case res := <-ch:
		if res.Shared {
			d.logger.Debug("复用进行中的目录请求")
		}
		if res.Err != nil {
			return model.Directory{}, res.Err
		}
		return res.Val.(model.Directory), nil
	case <-ctx.Done():
		return model.Directory{}, ctx.Err()
	}
}

func (d *Dashboard) fetch(ctx context.Context) (model.Directory, error) {
	done := d.begin(ActionFetch)
	defer done()

	list, err := d.api.ListNamespaces(ctx)
	if err != nil {
		return model.Directory{}, err
	}

	var dir model.Directory
	switch list.Message {
	case model.MessageNamespacesRetrieved:
		dir = model.NewDirectory(list.Owned, list.Delegated)
	case model.MessageNoNamespaces:
		dir = model.NewDirectory(nil, nil)
	default:
		message := list.Message
		if message == "" {
			message = fetchFallback
		}
		return model.Directory{}, sdk.NewServerError(message, 0)
	}

	d.mu.Lock()
	d.dir = dir
	d.mu.Unlock()

	metrics.DirectoryNamespaces.WithLabelValues(string(model.CollectionOwned)).Set(float64(len(dir.Owned)))
	metrics.DirectoryNamespaces.WithLabelValues(string(model.CollectionDelegated)).Set(float64(len(dir.Delegated)))
	d.logger.Debug("命名空间目录已更新",
		zap.Int("owned", len(dir.Owned)),
		zap.Int("delegated", len(dir.Delegated)))

	return dir, nil
}

// Refresh 重新获取目录，失败时通知用户
func (d *Dashboard) Refresh(ctx context.Context) error {
	_, err := d.FetchNamespaces(ctx)
	if err != nil {
		d.record(ActionFetch, err)
		d.notifyError("Error", err, fetchFallback+". Please try again.")
	}
	return err
}

// Snapshot 返回当前目录的副本
func (d *Dashboard) Snapshot() model.Directory {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return model.Directory{
		Owned:     append([]model.NamespaceView{}, d.dir.Owned...),
		Delegated: append([]model.NamespaceView{}, d.dir.Delegated...),
	}
}

// Owned 返回当前用户拥有的命名空间
func (d *Dashboard) Owned() []model.NamespaceView {
	return d.Snapshot().Owned
}

// Delegated 返回共享给当前用户的命名空间
func (d *Dashboard) Delegated() []model.NamespaceView {
	return d.Snapshot().Delegated
}

// SharedNamespaces 加载目录并返回共享给当前用户的命名空间
func (d *Dashboard) SharedNamespaces(ctx context.Context) ([]model.NamespaceView, error) {
	dir, err := d.FetchNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	return dir.Delegated, nil
}

// Lookup 按namespace_id查找已加载的命名空间
func (d *Dashboard) Lookup(namespaceID string) (model.NamespaceView, model.Collection, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.dir.Find(namespaceID)
}

// annotate 修改两个集合中匹配namespace_id的记录，不影响其他记录
func (d *Dashboard) annotate(namespaceID string, fn func(model.NamespaceView) model.NamespaceView) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir, ok := d.dir.Apply(namespaceID, fn)
	if ok {
		d.dir = dir
	}
	return ok
}
