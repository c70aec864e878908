package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-sync/internal/domain/models"
	"github.com/athebyme/gomarket-sync/internal/utils"
	"github.com/athebyme/gomarket-sync/pkg/interfaces"
	pkgmodels "github.com/athebyme/gomarket-sync/pkg/models"
	"github.com/athebyme/gomarket-sync/pkg/tx"
	"github.com/google/uuid"
)

// OrchestratorConfig настройки оркестратора
type OrchestratorConfig struct {
	// Channel тип маркетплейса, с которым работает RemoteClient
	Channel   pkgmodels.ChannelType
	BatchSize int
	// LockTTL время жизни блокировки push одной записи
	LockTTL time.Duration
}

// OrchestratorDeps зависимости оркестратора
type OrchestratorDeps struct {
	Products   ProductReader
	Accounts   AccountReader
	Links      LinkReader
	Records    SyncRecordStore
	Remote     RemoteClient
	TxManager  tx.TxManager
	Cache      interfaces.CachePort
	Events     EventPublisher
	Metrics    MetricsRecorder
	Comparator *Comparator
	Scorer     *HealthScorer
	Logger     interfaces.LoggerPort
	Now        func() time.Time
}

// SyncOrchestrator выполняет проверку статуса и отправку товаров на маркетплейс.
// Единственный писатель записей синхронизации
type SyncOrchestrator struct {
	products   ProductReader
	accounts   AccountReader
	links      LinkReader
	records    SyncRecordStore
	remote     RemoteClient
	txManager  tx.TxManager
	cache      interfaces.CachePort
	events     EventPublisher
	metrics    MetricsRecorder
	comparator *Comparator
	scorer     *HealthScorer
	logger     interfaces.LoggerPort
	cfg        OrchestratorConfig
	now        func() time.Time
}

// CheckRequest запрос проверки статуса товара
type CheckRequest struct {
	ProductID string
	AccountID string
	Method    models.Method
	Actor     models.Actor
}

// PushRequest запрос отправки товара. Пустой GroupKey означает все группы товара
type PushRequest struct {
	ProductID string
	AccountID string
	GroupKey  string
	Method    models.Method
	Actor     models.Actor
}

// NewSyncOrchestrator создает новый экземпляр SyncOrchestrator
func NewSyncOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *SyncOrchestrator {
	if deps.TxManager == nil {
		deps.TxManager = tx.NewNopTxManager()
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Comparator == nil {
		deps.Comparator = NewComparator(DefaultComparatorConfig())
	}
	if deps.Scorer == nil {
		deps.Scorer = NewHealthScorer(DefaultHealthConfig(), deps.Now)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}

	return &SyncOrchestrator{
		products:   deps.Products,
		accounts:   deps.Accounts,
		links:      deps.Links,
		records:    deps.Records,
		remote:     deps.Remote,
		txManager:  deps.TxManager,
		cache:      deps.Cache,
		events:     deps.Events,
		metrics:    deps.Metrics,
		comparator: deps.Comparator,
		scorer:     deps.Scorer,
		logger:     deps.Logger.WithComponent("orchestrator"),
		cfg:        cfg,
		now:        deps.Now,
	}
}

// CheckStatus получает снимки всех групп товара, сравнивает их с локальными данными
// и сохраняет обновленные записи. Сбой одной группы не мешает остальным
func (o *SyncOrchestrator) CheckStatus(ctx context.Context, req CheckRequest) (Result[*models.ProductStatus], error) {
	start := o.now()
	res, err := o.checkStatus(ctx, req)
	o.metrics.ObserveOperation(models.OperationCheck, outcomeOf(res.Success, err, statusOf(res.Data)), o.now().Sub(start))
	return res, err
}

func (o *SyncOrchestrator) checkStatus(ctx context.Context, req CheckRequest) (Result[*models.ProductStatus], error) {
	method := methodOrDefault(req.Method)

	account, product, failure, err := o.resolve(ctx, req.ProductID, req.AccountID)
	if err != nil {
		return fail[*models.ProductStatus](err.Error(), nil), err
	}
	if failure != "" {
		return fail[*models.ProductStatus](failure, nil), nil
	}

	status := &models.ProductStatus{
		Product: models.ProductInfo{
			ID:        product.ID,
			Title:     product.Title,
			GroupKeys: product.GroupKeys(),
		},
		AccountID: account.ID,
	}

	statuses := make([]models.SyncStatus, 0, len(status.Product.GroupKeys))
	failed := 0
	for _, groupKey := range status.Product.GroupKeys {
		gs, err := o.checkGrouping(ctx, account, product, groupKey, method, req.Actor)
		if err != nil {
			return fail[*models.ProductStatus](fmt.Sprintf("failed to check grouping %s", groupKey), nil),
				fmt.Errorf("failed to check grouping %s: %w", groupKey, err)
		}
		if gs.Status == models.StatusFailed {
			failed++
		}
		statuses = append(statuses, gs.Status)
		status.Groupings = append(status.Groupings, gs)
		status.HealthScore = minScore(status.HealthScore, gs.HealthScore)
	}

	status.OverallStatus = models.WorstStatus(statuses...)
	status.Grade = GradeFor(status.HealthScore)

	o.logger.InfoWithContext(ctx, "Статус товара проверен",
		interfaces.LogField{Key: "product_id", Value: product.ID},
		interfaces.LogField{Key: "account_id", Value: account.ID},
		interfaces.LogField{Key: "overall_status", Value: status.OverallStatus.String()},
		interfaces.LogField{Key: "method", Value: method.String()},
		interfaces.LogField{Key: "actor", Value: req.Actor.String()},
	)

	if failed > 0 {
		return ok(fmt.Sprintf("status checked, %d of %d groupings failed", failed, len(statuses)), status), nil
	}
	return ok("status checked", status), nil
}

func (o *SyncOrchestrator) checkGrouping(
	ctx context.Context,
	account *pkgmodels.MarketplaceAccount,
	product *pkgmodels.Product,
	groupKey string,
	method models.Method,
	actor models.Actor,
) (models.GroupingStatus, error) {
	key := models.SyncKey{ProductID: product.ID, GroupKey: groupKey, AccountID: account.ID}

	release, locked, err := o.acquireLock(ctx, key)
	if err != nil {
		return models.GroupingStatus{}, err
	}
	if locked {
		defer release()
	}

	rec, err := o.getRecord(ctx, key)
	if err != nil {
		return models.GroupingStatus{}, err
	}

	if rec == nil {
		// Без записи состояние выводится из наличия связи и не сохраняется
		st, err := o.statusWithoutRecord(ctx, key)
		if err != nil {
			return models.GroupingStatus{}, err
		}
		gs := models.GroupingStatus{
			GroupKey:       groupKey,
			Status:         st,
			Grade:          models.GradeNA,
			Recommendation: models.RecommendUnknown,
		}
		if !locked {
			gs.Error = utils.ErrSyncInProgress.Error()
		}
		return gs, nil
	}

	if !locked {
		// Запись обрабатывает другая операция: отдаем сохраненное состояние без сравнения
		gs := groupingFromRecord(rec)
		gs.Recommendation = models.RecommendUnknown
		gs.Error = utils.ErrSyncInProgress.Error()
		return gs, nil
	}

	if rec.ExternalID == nil {
		gs := groupingFromRecord(rec)
		gs.Recommendation = models.RecommendSyncNow
		return gs, nil
	}

	prev := rec.Clone()
	snapshot, fetchErr := o.remote.FetchSnapshot(ctx, *rec.ExternalID)
	if fetchErr == nil {
		if vErr := snapshot.Validate(); vErr != nil {
			fetchErr = utils.NewRemoteAPIError("fetch", 0, vErr.Error(), vErr)
		}
	}

	if fetchErr != nil {
		o.markFailed(rec, fetchErr)
		if err := o.persist(ctx, prev, rec, models.OperationCheck, method, actor, rec.LastError); err != nil {
			return models.GroupingStatus{}, err
		}
		o.logger.WarnWithContext(ctx, "Ошибка получения снимка с маркетплейса",
			interfaces.LogField{Key: "record", Value: key.String()},
			interfaces.LogField{Key: "failure_count", Value: rec.FailureCount},
			interfaces.ErrField(fetchErr),
		)
		gs := groupingFromRecord(rec)
		gs.Recommendation = models.RecommendUnknown
		gs.Error = rec.LastError
		return gs, nil
	}

	local := models.ListingFromProduct(product, groupKey)
	cmp := o.comparator.Compare(local, snapshot)

	now := o.now()
	rec.DriftScore = cmp.DriftScore
	rec.LastSnapshot = snapshot
	rec.FailureCount = 0
	rec.LastError = ""
	if cmp.NeedsSync {
		rec.Status = models.StatusDrifted
	} else {
		rec.Status = models.StatusSynced
		rec.LastSyncedAt = &now
	}
	rec.UpdatedAt = now
	rec.HealthScore = o.scorer.ScoreAt(rec, now)

	message := fmt.Sprintf("drift %.2f, %d differences", cmp.DriftScore, len(cmp.Differences))
	if err := o.persist(ctx, prev, rec, models.OperationCheck, method, actor, message); err != nil {
		return models.GroupingStatus{}, err
	}
	o.metrics.ObserveDrift(account.ID, cmp.DriftScore)

	gs := groupingFromRecord(rec)
	gs.Recommendation = cmp.Recommendation
	gs.Differences = cmp.Differences
	return gs, nil
}

// Push отправляет локальное состояние товара на маркетплейс.
// Все предусловия проверяются до любых изменений
func (o *SyncOrchestrator) Push(ctx context.Context, req PushRequest) (Result[*models.PushOutcome], error) {
	start := o.now()
	res, err := o.push(ctx, req)
	o.metrics.ObserveOperation(models.OperationPush, outcomeOf(res.Success, err, pushOutcome(res.Data)), o.now().Sub(start))
	return res, err
}

func (o *SyncOrchestrator) push(ctx context.Context, req PushRequest) (Result[*models.PushOutcome], error) {
	method := methodOrDefault(req.Method)

	account, product, failure, err := o.resolve(ctx, req.ProductID, req.AccountID)
	if err != nil {
		return fail[*models.PushOutcome](err.Error(), nil), err
	}
	if failure != "" {
		return fail[*models.PushOutcome](failure, nil), nil
	}

	groupKeys := product.GroupKeys()
	if req.GroupKey != "" {
		if !contains(groupKeys, req.GroupKey) {
			msg := utils.NewValidationError("group_key", fmt.Sprintf("product %s has no grouping %q", product.ID, req.GroupKey)).Error()
			return fail[*models.PushOutcome](msg, nil), nil
		}
		groupKeys = []string{req.GroupKey}
	}

	for _, groupKey := range groupKeys {
		_, err := o.links.GetLink(ctx, product.ID, groupKey, account.ID)
		if errors.Is(err, utils.ErrNotFound) {
			msg := utils.NewValidationError("link",
				fmt.Sprintf("no link found for product %s grouping %s on account %s", product.ID, groupKey, account.ID)).Error()
			return fail[*models.PushOutcome](msg, nil), nil
		}
		if err != nil {
			return fail[*models.PushOutcome]("failed to get marketplace link", nil), fmt.Errorf("failed to get marketplace link: %w", err)
		}
	}

	outcome := &models.PushOutcome{ProductID: product.ID, AccountID: account.ID}
	succeeded := 0
	for _, groupKey := range groupKeys {
		gp, err := o.pushGrouping(ctx, account, product, groupKey, method, req.Actor)
		if err != nil {
			return fail("failed to push grouping "+groupKey, outcome), fmt.Errorf("failed to push grouping %s: %w", groupKey, err)
		}
		if gp.Success {
			succeeded++
		}
		outcome.Groupings = append(outcome.Groupings, gp)
	}

	o.logger.InfoWithContext(ctx, "Отправка товара завершена",
		interfaces.LogField{Key: "product_id", Value: product.ID},
		interfaces.LogField{Key: "account_id", Value: account.ID},
		interfaces.LogField{Key: "succeeded", Value: succeeded},
		interfaces.LogField{Key: "total", Value: len(groupKeys)},
		interfaces.LogField{Key: "method", Value: method.String()},
		interfaces.LogField{Key: "actor", Value: req.Actor.String()},
	)

	if succeeded == len(groupKeys) {
		return ok("product pushed", outcome), nil
	}
	if len(groupKeys) == 1 {
		return fail(outcome.Groupings[0].Message, outcome), nil
	}
	return fail(fmt.Sprintf("%d of %d groupings failed to push", len(groupKeys)-succeeded, len(groupKeys)), outcome), nil
}

func (o *SyncOrchestrator) pushGrouping(
	ctx context.Context,
	account *pkgmodels.MarketplaceAccount,
	product *pkgmodels.Product,
	groupKey string,
	method models.Method,
	actor models.Actor,
) (models.GroupingPush, error) {
	key := models.SyncKey{ProductID: product.ID, GroupKey: groupKey, AccountID: account.ID}

	release, locked, err := o.acquireLock(ctx, key)
	if err != nil {
		return models.GroupingPush{}, err
	}

	rec, err := o.getRecord(ctx, key)
	if err != nil {
		if locked {
			release()
		}
		return models.GroupingPush{}, err
	}

	if !locked {
		// Связь проверена в push, без записи группа ожидает первой отправки
		gp := models.GroupingPush{GroupKey: groupKey, Status: models.StatusPending, Grade: models.GradeNA}
		if rec != nil {
			gp = groupingPushFromRecord(rec, false, "")
		}
		gp.Skipped = true
		gp.Message = utils.ErrSyncInProgress.Error()
		return gp, nil
	}
	defer release()

	var prev *models.SyncRecord
	if rec == nil {
		rec = models.NewSyncRecord(uuid.New().String(), key, o.now())
	} else {
		prev = rec.Clone()
	}

	listing := models.ListingFromProduct(product, groupKey)
	ack, pushErr := o.remote.Push(ctx, rec.ExternalID, listing)
	if pushErr == nil {
		switch {
		case ack == nil:
			pushErr = utils.NewRemoteAPIError("push", 0, "empty response", nil)
		case !ack.Accepted:
			msg := ack.Message
			if msg == "" {
				msg = "listing rejected"
			}
			pushErr = utils.NewRemoteAPIError("push", 0, msg, nil)
		case ack.ExternalID == "" && rec.ExternalID == nil:
			pushErr = utils.NewRemoteAPIError("push", 0, "remote returned no external id", nil)
		}
	}

	if pushErr != nil {
		o.markFailed(rec, pushErr)
		if err := o.persist(ctx, prev, rec, models.OperationPush, method, actor, rec.LastError); err != nil {
			return models.GroupingPush{}, err
		}
		o.logger.WarnWithContext(ctx, "Ошибка отправки листинга",
			interfaces.LogField{Key: "record", Value: key.String()},
			interfaces.LogField{Key: "failure_count", Value: rec.FailureCount},
			interfaces.ErrField(pushErr),
		)
		return groupingPushFromRecord(rec, false, rec.LastError), nil
	}

	externalID := ack.ExternalID
	if externalID == "" {
		externalID = *rec.ExternalID
	}

	now := o.now()
	rec.ExternalID = &externalID
	rec.Status = models.StatusSynced
	rec.DriftScore = 0
	rec.LastSnapshot = models.SnapshotFromListing(externalID, listing, now)
	rec.LastSyncedAt = &now
	rec.FailureCount = 0
	rec.LastError = ""
	rec.UpdatedAt = now
	rec.HealthScore = o.scorer.ScoreAt(rec, now)

	if err := o.persist(ctx, prev, rec, models.OperationPush, method, actor, "listing pushed"); err != nil {
		return models.GroupingPush{}, err
	}
	return groupingPushFromRecord(rec, true, "listing pushed"), nil
}

// acquireLock берет блокировку записи, общую для проверки и отправки.
// locked=false означает, что запись занята другой операцией
func (o *SyncOrchestrator) acquireLock(ctx context.Context, key models.SyncKey) (release func(), locked bool, err error) {
	if o.cache == nil {
		return func() {}, true, nil
	}
	lockKey := lockKeyFor(key)
	locked, err = o.cache.Lock(ctx, lockKey, o.cfg.LockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !locked {
		return nil, false, nil
	}
	return func() {
		if err := o.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
			o.logger.WarnWithContext(ctx, "Ошибка снятия блокировки синхронизации",
				interfaces.LogField{Key: "record", Value: key.String()},
				interfaces.ErrField(err),
			)
		}
	}, true, nil
}

// getRecord возвращает nil без ошибки, если записи нет
func (o *SyncOrchestrator) getRecord(ctx context.Context, key models.SyncKey) (*models.SyncRecord, error) {
	rec, err := o.records.GetRecord(ctx, key)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return rec, nil
}

func (o *SyncOrchestrator) statusWithoutRecord(ctx context.Context, key models.SyncKey) (models.SyncStatus, error) {
	_, err := o.links.GetLink(ctx, key.ProductID, key.GroupKey, key.AccountID)
	switch {
	case err == nil:
		return models.StatusPending, nil
	case errors.Is(err, utils.ErrNotFound):
		return models.StatusUnlinked, nil
	default:
		return 0, fmt.Errorf("failed to get marketplace link: %w", err)
	}
}

// resolve загружает аккаунт и товар. Ожидаемые отказы возвращаются сообщением,
// ошибки инфраструктуры - как error
func (o *SyncOrchestrator) resolve(ctx context.Context, productID, accountID string) (*pkgmodels.MarketplaceAccount, *pkgmodels.Product, string, error) {
	if productID == "" {
		return nil, nil, utils.NewValidationError("product_id", "is required").Error(), nil
	}
	if accountID == "" {
		return nil, nil, utils.NewValidationError("account_id", "is required").Error(), nil
	}

	account, err := o.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil, utils.NewNotFoundError("marketplace account", accountID).Error(), nil
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get marketplace account: %w", err)
	}
	if account.Channel != o.cfg.Channel {
		msg := fmt.Sprintf("product/account mismatch: account %s is a %s account, expected %s", account.ID, account.Channel, o.cfg.Channel)
		return nil, nil, utils.NewValidationError("account", msg).Error(), nil
	}
	if !account.Active {
		return nil, nil, utils.NewValidationError("account", fmt.Sprintf("account %s is inactive", account.ID)).Error(), nil
	}

	product, err := o.products.GetProduct(ctx, productID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil, utils.NewNotFoundError("product", productID).Error(), nil
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to get product: %w", err)
	}

	return account, product, "", nil
}

func (o *SyncOrchestrator) markFailed(rec *models.SyncRecord, cause error) {
	now := o.now()
	rec.Status = models.StatusFailed
	rec.FailureCount++
	rec.LastError = cause.Error()
	rec.UpdatedAt = now
	rec.HealthScore = o.scorer.ScoreAt(rec, now)
}

// persist сохраняет запись и событие перехода в одной транзакции,
// затем публикует событие
func (o *SyncOrchestrator) persist(
	ctx context.Context,
	prev, rec *models.SyncRecord,
	operation string,
	method models.Method,
	actor models.Actor,
	message string,
) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid record: %w", err)
	}

	from := models.StatusUnlinked
	if prev != nil {
		from = prev.Status
	}
	event := &models.SyncEvent{
		ID:         uuid.New().String(),
		RecordID:   rec.ID,
		ProductID:  rec.ProductID,
		GroupKey:   rec.GroupKey,
		AccountID:  rec.AccountID,
		Operation:  operation,
		FromStatus: from,
		ToStatus:   rec.Status,
		Method:     method,
		Actor:      actor.String(),
		DriftScore: rec.DriftScore,
		Message:    message,
		OccurredAt: o.now(),
	}

	err := o.txManager.Do(ctx, func(ctx context.Context) error {
		if err := o.records.UpsertRecord(ctx, rec); err != nil {
			return fmt.Errorf("failed to upsert sync record: %w", err)
		}
		if err := o.records.AppendEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to append sync event: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if o.events != nil {
		if err := o.events.PublishSyncEvent(ctx, event); err != nil {
			o.logger.WarnWithContext(ctx, "Ошибка публикации события синхронизации",
				interfaces.LogField{Key: "event_id", Value: event.ID},
				interfaces.ErrField(err),
			)
		}
	}
	return nil
}

func groupingFromRecord(rec *models.SyncRecord) models.GroupingStatus {
	return models.GroupingStatus{
		GroupKey:     rec.GroupKey,
		ExternalID:   rec.ExternalID,
		Status:       rec.Status,
		DriftScore:   rec.DriftScore,
		HealthScore:  rec.HealthScore,
		Grade:        GradeFor(rec.HealthScore),
		LastSyncedAt: rec.LastSyncedAt,
		FailureCount: rec.FailureCount,
	}
}

func groupingPushFromRecord(rec *models.SyncRecord, success bool, message string) models.GroupingPush {
	return models.GroupingPush{
		GroupKey:    rec.GroupKey,
		ExternalID:  rec.ExternalID,
		Status:      rec.Status,
		HealthScore: rec.HealthScore,
		Grade:       GradeFor(rec.HealthScore),
		Success:     success,
		Message:     message,
	}
}

func lockKeyFor(key models.SyncKey) string {
	return "sync:lock:" + key.String()
}

func minScore(current, next *int) *int {
	if next == nil {
		return current
	}
	if current == nil || *next < *current {
		v := *next
		return &v
	}
	return current
}

func methodOrDefault(m models.Method) models.Method {
	if !m.Valid() {
		return models.MethodManual
	}
	return m
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func statusOf(ps *models.ProductStatus) string {
	if ps == nil {
		return models.OutcomeError
	}
	return ps.OverallStatus.String()
}

// pushOutcome худший статус отправленных групп. Группы, пропущенные
// из-за блокировки, не учитываются
func pushOutcome(po *models.PushOutcome) string {
	if po == nil || len(po.Groupings) == 0 {
		return models.OutcomeError
	}
	statuses := make([]models.SyncStatus, 0, len(po.Groupings))
	for _, g := range po.Groupings {
		if !g.Skipped && g.Status.Valid() {
			statuses = append(statuses, g.Status)
		}
	}
	if len(statuses) == 0 {
		return models.OutcomeSkipped
	}
	return models.WorstStatus(statuses...).String()
}

func outcomeOf(success bool, err error, outcome string) string {
	if err != nil {
		return models.OutcomeError
	}
	if !success && outcome == "" {
		return models.OutcomeError
	}
	return outcome
}
