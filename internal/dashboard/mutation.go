package dashboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hewenyu/dedi-console/internal/metrics"
	"github.com/hewenyu/dedi-console/internal/refresh"
	"github.com/hewenyu/dedi-console/pkg/model"
	sdk "github.com/hewenyu/dedi-console/sdk/go"
)

// placeholderMeta 未开启元数据时更新请求携带的占位元数据
func placeholderMeta() model.Meta {
	return model.Meta{"additionalProp1": map[string]any{}}
}

// requestMeta 开启元数据且内容非空时发送用户元数据，否则发送fallback
func requestMeta(in model.NamespaceInput, fallback model.Meta) model.Meta {
	if in.WithMeta && len(in.Meta) > 0 {
		return in.Meta
	}
	return fallback
}

// CreateNamespace 创建命名空间，成功后通知用户并刷新目录
// 校验失败时不会发出网络请求，创建失败不会重试
func (d *Dashboard) CreateNamespace(ctx context.Context, in model.NamespaceInput) (id string, err error) {
	done := d.begin(ActionCreate)
	defer done()
	defer func() {
		d.record(ActionCreate, err)
		if err != nil {
			d.notifyError("Error", err, "Failed to create namespace. Please try again.")
		}
	}()

	if err := validateInput(in); err != nil {
		return "", err
	}

	name, description := in.Normalize()
	id, err = d.api.CreateNamespace(ctx, sdk.NamespaceRequest{
		Name:        name,
		Description: description,
		Meta:        requestMeta(in, model.Meta{}),
	})
	if err != nil {
		return "", err
	}

	d.logger.Info("命名空间已创建", zap.String("namespace_id", id), zap.String("name", name))
	d.notifySuccess("Success!", fmt.Sprintf("Namespace %q has been created successfully.", name))
	d.Refresh(ctx)
	return id, nil
}

// UpdateNamespace 更新命名空间，成功后在后台有界重试刷新目录
// 同一命名空间未完成的刷新任务会被取消
func (d *Dashboard) UpdateNamespace(ctx context.Context, namespaceID string, in model.NamespaceInput) (err error) {
	done := d.begin(ActionUpdate)
	defer done()
	defer func() {
		d.record(ActionUpdate, err)
		if err != nil {
			d.notifyError("Error", err, "Failed to update namespace. Please try again.")
		}
	}()

	if namespaceID == "" {
		return sdk.NewUpdateWithoutSelectionError()
	}
	if err := validateInput(in); err != nil {
		return err
	}

	fallback := model.Meta{}
	if d.placeholderMeta {
		fallback = placeholderMeta()
	}

	// 新的更新开始前取消旧的刷新任务
	d.scheduler.Cancel(namespaceID)

	name, description := in.Normalize()
	if err := d.api.UpdateNamespace(ctx, namespaceID, sdk.NamespaceRequest{
		Name:        name,
		Description: description,
		Meta:        requestMeta(in, fallback),
	}); err != nil {
		return err
	}

	d.logger.Info("命名空间已更新", zap.String("namespace_id", namespaceID))
	d.notifySuccess("Success!", fmt.Sprintf("Namespace %q has been updated successfully.", name))
	d.scheduleRefresh(namespaceID, name, description)
	return nil
}

// scheduleRefresh 后台轮询目录，直到看到更新后的名称或描述，或重试次数用尽
// 结束后做一次完整刷新，任务被取消时不刷新
func (d *Dashboard) scheduleRefresh(namespaceID, name, description string) {
	logger := d.logger.Named("refresh")

	d.scheduler.Schedule(namespaceID, func(ctx context.Context) {
		probe := func(ctx context.Context, attempt int) (bool, error) {
			logger.Debug("更新后刷新目录", zap.String("namespace_id", namespaceID), zap.Int("attempt", attempt))

			list, err := d.api.ListNamespaces(ctx)
			if err != nil {
				metrics.RefreshAttemptsTotal.WithLabelValues("error").Inc()
				return false, err
			}
			if matchesUpdate(list, namespaceID, name, description) {
				metrics.RefreshAttemptsTotal.WithLabelValues("matched").Inc()
				return true, nil
			}
			metrics.RefreshAttemptsTotal.WithLabelValues("mismatch").Inc()
			return false, nil
		}

		outcome, attempts := d.policy.Poll(ctx, probe, func(attempt int, err error) {
			logger.Warn("刷新重试失败", zap.String("namespace_id", namespaceID), zap.Int("attempt", attempt), zap.Error(err))
		})
		metrics.RefreshCompletedTotal.WithLabelValues(string(outcome)).Inc()

		if outcome == refresh.OutcomeCancelled {
			logger.Debug("刷新任务已取消", zap.String("namespace_id", namespaceID), zap.Int("attempts", attempts))
			return
		}
		if outcome == refresh.OutcomeExhausted {
			logger.Info("达到最大重试次数，执行最终刷新", zap.String("namespace_id", namespaceID))
		}
		d.Refresh(ctx)
	})
}

// matchesUpdate 判断列表中的命名空间是否已反映更新后的名称或描述
func matchesUpdate(list *sdk.NamespaceList, namespaceID, name, description string) bool {
	if list == nil || list.Message != model.MessageNamespacesRetrieved {
		return false
	}
	for _, group := range [][]model.Namespace{list.Owned, list.Delegated} {
		for _, ns := range group {
			if ns.NamespaceID == namespaceID {
				return ns.Name == name || ns.Description == description
			}
		}
	}
	return false
}
