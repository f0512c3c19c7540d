package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"alfred/common/database"
	"alfred/common/mqtt"
	rediscommon "alfred/common/redis"
	"alfred/internal/alert"
	"alfred/internal/config"
	"alfred/internal/consumer"
	"alfred/internal/device"
	"alfred/internal/httpapi"
	"alfred/internal/messaging"
	"alfred/internal/observable"
	"alfred/internal/repository"
	"alfred/internal/segmenter"
	"alfred/internal/session"
	"alfred/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlfredService 伴侣服务（整合各层）
type AlfredService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	session    *session.Session
	mqttClient *mqtt.Client
	device     *device.Client

	segmentRepo    *repository.SegmentRepository
	contactRepo    *repository.ContactRepository
	alertEventRepo *repository.AlertEventRepository
	changeFeed     *repository.ChangeFeed

	contactCache *store.ContactCache
	alertState   *store.AlertStateMirror

	sequencer      *alert.Sequencer
	segmenter      *segmenter.Segmenter
	deviceConsumer *consumer.DeviceConsumer
	dispatcher     *consumer.AlertDispatcher

	server *Server

	fallHandle     observable.Handle
	stateHandle    observable.Handle
	contactsHandle observable.Handle
	userHandle     observable.Handle
}

// NewAlfredService 创建伴侣服务
func NewAlfredService(cfg *config.Config, logger *zap.Logger) (*AlfredService, error) {
	ctx := context.Background()

	// 1. 连接数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	// 2. 连接 Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := &AlfredService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
		session:     session.New(cfg.UserID),
	}

	// 3. Repository 层
	s.segmentRepo = repository.NewSegmentRepository(db, logger)
	s.contactRepo = repository.NewContactRepository(db, logger)
	s.alertEventRepo = repository.NewAlertEventRepository(db, logger)
	s.changeFeed = repository.NewChangeFeed(cfg.Database.GetDSN(), logger)

	// 4. Redis 缓存
	kv := store.NewRedisKVStore(redisClient)
	s.contactCache = store.NewContactCache(kv, s.contactRepo, cfg.Contacts.CacheKeyPrefix, cfg.Contacts.CacheTTL, logger)
	s.alertState = store.NewAlertStateMirror(kv, cfg.Alert.StateKeyPrefix, cfg.Alert.StateTTL, logger)

	// 5. 设备（MQTT），连接状态回调在 Connect 之后才会触发
	deviceCfg := device.Config{
		DeviceID:    cfg.Device.ID,
		TopicPrefix: cfg.Device.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
	}
	s.mqttClient = mqtt.NewClient(&cfg.MQTT, logger, func(connected bool) {
		if s.device != nil {
			s.device.HandleConnection(connected)
		}
	})
	s.device = device.NewClient(s.mqttClient, deviceCfg, logger)

	// 6. 报警
	if cfg.SMS.AccountSID == "" || cfg.SMS.From == "" {
		logger.Warn("SMS gateway is not configured, emergency SMS will fail")
	}
	smsClient := messaging.NewSMSClient(messaging.SMSConfig{
		BaseURL:    cfg.SMS.BaseURL,
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		From:       cfg.SMS.From,
		Timeout:    cfg.SMS.Timeout,
	}, logger)
	s.sequencer = alert.NewSequencer(alert.Config{
		CountdownSeconds: cfg.Alert.CountdownSeconds,
		TickInterval:     cfg.Alert.TickInterval,
		HapticInterval:   cfg.Alert.HapticInterval,
	}, device.NewCommandAlerter(s.mqttClient, deviceCfg), smsClient, logger)

	// 7. 片段与消费者
	s.segmenter = segmenter.New(s.segmentRepo, s.session, logger)
	s.deviceConsumer = consumer.NewDeviceConsumer(s.device, s.segmenter, redisClient, cfg.Device.StreamName, cfg.Device.StreamMaxLen, logger)
	s.dispatcher = consumer.NewAlertDispatcher(s.sequencer, s.contactCache, s.alertEventRepo, s.session, logger)

	// 8. HTTP
	router := httpapi.NewRouter(logger)
	router.RegisterSegmentRoutes(httpapi.NewSegmentsHandler(s.segmentRepo, s.segmenter, s.session, time.Local, logger))
	router.RegisterContactRoutes(httpapi.NewContactsHandler(s.contactRepo, s.contactCache, smsClient, s.session, logger))
	router.RegisterAlertRoutes(httpapi.NewAlertHandler(s.dispatcher, s.sequencer, s.alertEventRepo, s.session, logger))
	router.RegisterDeviceRoutes(httpapi.NewDeviceHandler(s.device, s.segmenter, s.deviceConsumer, cfg.MQTT.ConnectTimeout, logger))
	router.RegisterSessionRoutes(httpapi.NewSessionHandler(s.session, logger))
	s.server = NewServer(cfg.HTTP.Addr, router, logger)

	return s, nil
}

// Start 启动服务，阻塞直到 HTTP 服务退出
func (s *AlfredService) Start(ctx context.Context) error {
	s.logger.Info("Starting alfred service",
		zap.String("device_id", s.config.Device.ID),
		zap.String("user_id", s.config.UserID),
	)

	if err := repository.EnsureSchema(ctx, s.db); err != nil {
		return err
	}
	// 订阅链：设备值 -> Segmenter -> 跌倒 -> 报警
	s.userHandle = s.session.SubscribeToUserChange(s.handleUserChange)
	s.fallHandle = s.segmenter.SubscribeToFall(s.dispatcher.OnFall)
	s.stateHandle = s.sequencer.SubscribeState(s.alertState.Observer(s.currentUser))
	s.contactsHandle = s.changeFeed.Subscribe(repository.TableEmergencyContacts, s.handleContactChange)

	if err := s.changeFeed.Start(ctx); err != nil {
		s.logger.Warn("Change feed unavailable, contacts cache relies on TTL", zap.Error(err))
	}
	s.dispatcher.Start(ctx)
	s.deviceConsumer.Start(ctx)

	connectCtx, cancel := context.WithTimeout(ctx, s.config.MQTT.ConnectTimeout)
	if !s.device.Connect(connectCtx) {
		s.logger.Warn("Device not connected at startup, use POST /api/v1/device/connect to retry")
	}
	cancel()

	if err := s.server.Start(); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop 停止服务
func (s *AlfredService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping alfred service")

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	s.deviceConsumer.Stop()
	s.session.UnsubscribeFromUserChange(s.userHandle)
	s.segmenter.UnsubscribeFromFall(s.fallHandle)
	// 结束进行中的报警会话（强制关闭）
	s.dispatcher.Stop()
	s.sequencer.UnsubscribeState(s.stateHandle)

	s.device.Disconnect()
	s.changeFeed.Unsubscribe(repository.TableEmergencyContacts, s.contactsHandle)
	s.changeFeed.Stop()

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	return nil
}

func (s *AlfredService) currentUser() string {
	userID, _ := s.session.CurrentUser()
	return userID
}

// handleUserChange 登录用户变化时在切换时刻关闭上一用户的片段
// 新用户遗留的打开片段由 Segmenter 在下一次上报时接管
func (s *AlfredService) handleUserChange(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.segmenter.OnUserChanged(ctx, userID)
}

// handleContactChange 联系人变更时使缓存失效；重连后按当前用户失效
func (s *AlfredService) handleContactChange(ev repository.ChangeEvent) {
	userID := ev.UserID
	if ev.Operation == repository.OperationResync || userID == "" {
		userID = s.currentUser()
	}
	if userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.contactCache.Invalidate(ctx, userID)
}

