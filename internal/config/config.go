package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bugtrack/backend/internal/domain"
)

// ServerConfig 定义运维 HTTP 接口的监听配置参数
type ServerConfig struct {
	Host        string   // 监听地址，默认 "0.0.0.0"
	Port        int      // 监听端口，默认 8080
	CORSOrigins []string // 允许的跨域来源，默认 ["*"]
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 投递认领配置（可选）
type RedisConfig struct {
	Enabled  bool          // 是否启用 drain 认领，默认关闭（保持原始 at-least-once 行为）
	Address  string        // Redis 服务地址，默认 "localhost:6379"
	Password string        // Redis 认证密码，留空表示无密码
	DB       int           // Redis 数据库编号，默认 0
	ClaimTTL time.Duration // 认领有效期，默认 2 分钟
}

// EmailConfig 定义通知邮件的生成与投递配置
type EmailConfig struct {
	Enabled         bool          // 总开关，关闭后 Enqueue 一律空操作
	SendUsingCron   bool          // 投递交给独立的 cmd/mailer 任务，请求结束时不 drain
	ReceiveOwn      bool          // 是否通知触发事件的用户本人
	FromAddress     string        // 发件地址
	FromName        string        // 发件人显示名
	ReturnPath      string        // 退信地址
	SMTPHost        string        // SMTP 服务器地址
	SMTPPort        int           // SMTP 端口，默认 25
	SMTPUsername    string        // SMTP 认证用户名，留空表示不认证
	SMTPPassword    string        // SMTP 认证密码
	Priority        int           // 邮件优先级：1 紧急，5 普通，0 禁用
	Charset         string        // 字符集，默认 utf-8
	SendTimeout     time.Duration // 单封邮件的投递超时
	SendRatePerSec  float64       // 投递速率上限（封/秒），0 表示不限速
	PaddingLength   int           // 正文字段名的补齐宽度
	BugIDPadding    int           // 缺陷编号补零宽度
	NoteIDPadding   int           // 注释编号补零宽度
	DateFormat      string        // 一般日期格式（Go layout）
	FullDateFormat  string        // 完整日期格式（Go layout）
	ShowNotes       bool          // 正文是否附带注释
	DefaultLanguage string        // 系统默认语言
	FallbackLang    string        // 最终回退语言
	NoteLinkTag     string        // 注释链接前缀，如 "~"
	BaseURL         string        // 缺陷页面链接前缀，留空则正文不含链接

	DrainBudget time.Duration // drain 失败处理的累计时间预算，默认 5 秒
}

// NotifyFlags 定义某通知类型的收件来源开关与角色阈值区间
type NotifyFlags struct {
	Explicit     bool               // 显式指定的用户
	Reporter     bool               // 缺陷报告人
	Handler      bool               // 缺陷处理人
	Monitors     bool               // 监视者
	NoteAuthors  bool               // 注释作者
	ThresholdMin domain.AccessLevel // 按角色收件的下限（含）
	ThresholdMax domain.AccessLevel // 按角色收件的上限（含）
}

// NotifyConfig 定义通知收件规则：默认开关表及按类型的覆盖表
type NotifyConfig struct {
	Default   NotifyFlags
	Overrides map[domain.NotifyType]NotifyFlags
}

// Flags 取给定通知类型的生效开关：覆盖表优先，否则退回默认表。
func (n *NotifyConfig) Flags(t domain.NotifyType) NotifyFlags {
	if flags, ok := n.Overrides[t]; ok {
		return flags
	}
	return n.Default
}

// AccessConfig 定义可见性与字段过滤相关的访问阈值
type AccessConfig struct {
	ViewBugThreshold         domain.AccessLevel // 查看缺陷
	PrivateBugThreshold      domain.AccessLevel // 查看私有缺陷
	PrivateNoteThreshold     domain.AccessLevel // 查看私有注释
	SetViewStatusThreshold   domain.AccessLevel // 将注释设为私有
	ViewHandlerThreshold     domain.AccessLevel // 在邮件中看到处理人
	RoadmapViewThreshold     domain.AccessLevel // 在邮件中看到目标版本
	ViewHistoryThreshold     domain.AccessLevel // 在邮件中看到历史
	TimeTrackingThreshold    domain.AccessLevel // 看到注释工时
	ShowUserEmailThreshold   domain.AccessLevel // 提醒邮件中披露发送人邮箱
	SponsorTotalThreshold    domain.AccessLevel // 看到赞助总额
	SponsorDetailsThreshold  domain.AccessLevel // 看到赞助明细
	HistoryDefaultVisible    bool               // 历史默认可见开关
	EnableSponsorship        bool               // 赞助功能开关
	TimeTrackingEnabled      bool               // 工时功能开关
	TimeTrackingWithoutNote  bool               // 允许无正文的工时注释
	ResolvedStatusThreshold  domain.BugStatus   // 视为已解决的状态阈值
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Notify   NotifyConfig
	Access   AccessConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: BUGTRACK_
// 例如: BUGTRACK_EMAIL_SMTP_HOST, BUGTRACK_DATABASE_DSN
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，.env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("bugtrack")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.claim_ttl", "2m")
	viper.SetDefault("email.enabled", true)
	viper.SetDefault("email.send_using_cron", false)
	viper.SetDefault("email.receive_own", false)
	viper.SetDefault("email.from_address", "bugtracker@example.com")
	viper.SetDefault("email.from_name", "Bug Tracker")
	viper.SetDefault("email.return_path", "")
	viper.SetDefault("email.smtp_host", "localhost")
	viper.SetDefault("email.smtp_port", 25)
	viper.SetDefault("email.smtp_username", "")
	viper.SetDefault("email.smtp_password", "")
	viper.SetDefault("email.priority", 5)
	viper.SetDefault("email.charset", "utf-8")
	viper.SetDefault("email.send_timeout", "10s")
	viper.SetDefault("email.send_rate_per_sec", 0.0)
	viper.SetDefault("email.padding_length", 28)
	viper.SetDefault("email.bug_id_padding", 7)
	viper.SetDefault("email.note_id_padding", 7)
	viper.SetDefault("email.date_format", "2006-01-02 15:04")
	viper.SetDefault("email.full_date_format", "2006-01-02 15:04 MST")
	viper.SetDefault("email.show_notes", true)
	viper.SetDefault("email.default_language", "english")
	viper.SetDefault("email.fallback_language", "english")
	viper.SetDefault("email.note_link_tag", "~")
	viper.SetDefault("email.base_url", "")
	viper.SetDefault("email.drain_budget", "5s")
	viper.SetDefault("notify.threshold_min", int(domain.AccessAdministrator)+1) // 默认不按角色收件
	viper.SetDefault("notify.threshold_max", int(domain.AccessAdministrator))
	viper.SetDefault("access.view_bug_threshold", int(domain.AccessViewer))
	viper.SetDefault("access.private_bug_threshold", int(domain.AccessDeveloper))
	viper.SetDefault("access.private_note_threshold", int(domain.AccessDeveloper))
	viper.SetDefault("access.set_view_status_threshold", int(domain.AccessReporter))
	viper.SetDefault("access.view_handler_threshold", int(domain.AccessViewer))
	viper.SetDefault("access.roadmap_view_threshold", int(domain.AccessViewer))
	viper.SetDefault("access.view_history_threshold", int(domain.AccessViewer))
	viper.SetDefault("access.time_tracking_threshold", int(domain.AccessDeveloper))
	viper.SetDefault("access.show_user_email_threshold", int(domain.AccessDeveloper))
	viper.SetDefault("access.sponsor_total_threshold", int(domain.AccessViewer))
	viper.SetDefault("access.sponsor_details_threshold", int(domain.AccessDeveloper))
	viper.SetDefault("access.history_default_visible", true)
	viper.SetDefault("access.enable_sponsorship", false)
	viper.SetDefault("access.time_tracking_enabled", false)
	viper.SetDefault("access.time_tracking_without_note", true)
	viper.SetDefault("access.resolved_status_threshold", int(domain.StatusResolved))

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		return nil, fmt.Errorf("invalid database.conn_max_lifetime: %w", err)
	}
	claimTTL, err := time.ParseDuration(viper.GetString("redis.claim_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid redis.claim_ttl: %w", err)
	}
	sendTimeout, err := time.ParseDuration(viper.GetString("email.send_timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid email.send_timeout: %w", err)
	}
	drainBudget, err := time.ParseDuration(viper.GetString("email.drain_budget"))
	if err != nil {
		return nil, fmt.Errorf("invalid email.drain_budget: %w", err)
	}

	dbType := viper.GetString("database.type")
	if dbType != "" && dbType != "mysql" && dbType != "postgres" {
		return nil, fmt.Errorf("invalid database.type: %s (supported: mysql, postgres)", dbType)
	}

	priority := viper.GetInt("email.priority")
	if priority < 0 || priority > 5 {
		return nil, fmt.Errorf("invalid email.priority: %d (expected 0-5)", priority)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("server.host"),
			Port:        viper.GetInt("server.port"),
			CORSOrigins: viper.GetStringSlice("server.cors_origins"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
			ClaimTTL: claimTTL,
		},
		Email: EmailConfig{
			Enabled:         viper.GetBool("email.enabled"),
			SendUsingCron:   viper.GetBool("email.send_using_cron"),
			ReceiveOwn:      viper.GetBool("email.receive_own"),
			FromAddress:     viper.GetString("email.from_address"),
			FromName:        viper.GetString("email.from_name"),
			ReturnPath:      viper.GetString("email.return_path"),
			SMTPHost:        viper.GetString("email.smtp_host"),
			SMTPPort:        viper.GetInt("email.smtp_port"),
			SMTPUsername:    viper.GetString("email.smtp_username"),
			SMTPPassword:    viper.GetString("email.smtp_password"),
			Priority:        priority,
			Charset:         viper.GetString("email.charset"),
			SendTimeout:     sendTimeout,
			SendRatePerSec:  viper.GetFloat64("email.send_rate_per_sec"),
			PaddingLength:   viper.GetInt("email.padding_length"),
			BugIDPadding:    viper.GetInt("email.bug_id_padding"),
			NoteIDPadding:   viper.GetInt("email.note_id_padding"),
			DateFormat:      viper.GetString("email.date_format"),
			FullDateFormat:  viper.GetString("email.full_date_format"),
			ShowNotes:       viper.GetBool("email.show_notes"),
			DefaultLanguage: viper.GetString("email.default_language"),
			FallbackLang:    viper.GetString("email.fallback_language"),
			NoteLinkTag:     viper.GetString("email.note_link_tag"),
			BaseURL:         viper.GetString("email.base_url"),
			DrainBudget:     drainBudget,
		},
		Notify: defaultNotifyConfig(
			domain.AccessLevel(viper.GetInt("notify.threshold_min")),
			domain.AccessLevel(viper.GetInt("notify.threshold_max")),
		),
		Access: AccessConfig{
			ViewBugThreshold:        domain.AccessLevel(viper.GetInt("access.view_bug_threshold")),
			PrivateBugThreshold:     domain.AccessLevel(viper.GetInt("access.private_bug_threshold")),
			PrivateNoteThreshold:    domain.AccessLevel(viper.GetInt("access.private_note_threshold")),
			SetViewStatusThreshold:  domain.AccessLevel(viper.GetInt("access.set_view_status_threshold")),
			ViewHandlerThreshold:    domain.AccessLevel(viper.GetInt("access.view_handler_threshold")),
			RoadmapViewThreshold:    domain.AccessLevel(viper.GetInt("access.roadmap_view_threshold")),
			ViewHistoryThreshold:    domain.AccessLevel(viper.GetInt("access.view_history_threshold")),
			TimeTrackingThreshold:   domain.AccessLevel(viper.GetInt("access.time_tracking_threshold")),
			ShowUserEmailThreshold:  domain.AccessLevel(viper.GetInt("access.show_user_email_threshold")),
			SponsorTotalThreshold:   domain.AccessLevel(viper.GetInt("access.sponsor_total_threshold")),
			SponsorDetailsThreshold: domain.AccessLevel(viper.GetInt("access.sponsor_details_threshold")),
			HistoryDefaultVisible:   viper.GetBool("access.history_default_visible"),
			EnableSponsorship:       viper.GetBool("access.enable_sponsorship"),
			TimeTrackingEnabled:     viper.GetBool("access.time_tracking_enabled"),
			TimeTrackingWithoutNote: viper.GetBool("access.time_tracking_without_note"),
			ResolvedStatusThreshold: domain.BugStatus(viper.GetInt("access.resolved_status_threshold")),
		},
	}

	return cfg, nil
}

// defaultNotifyConfig 返回内建的通知收件规则。
//
// 默认表：所有来源开启，按角色收件关闭（阈值区间为空）。
// 覆盖表：提醒类（monitor）不按注释作者扩散。
func defaultNotifyConfig(min, max domain.AccessLevel) NotifyConfig {
	defaults := NotifyFlags{
		Explicit:     true,
		Reporter:     true,
		Handler:      true,
		Monitors:     true,
		NoteAuthors:  true,
		ThresholdMin: min,
		ThresholdMax: max,
	}
	monitor := defaults
	monitor.NoteAuthors = false
	return NotifyConfig{
		Default: defaults,
		Overrides: map[domain.NotifyType]NotifyFlags{
			domain.NotifyMonitor: monitor,
		},
	}
}

// loadEnvFile 按当前目录和父目录的顺序加载 .env 文件。
func loadEnvFile() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
