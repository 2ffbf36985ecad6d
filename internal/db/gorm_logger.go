package db

import (
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// NewGormLogger routes gorm's query log through zap at warn level. Missing
// rows are expected lookups and are not logged; SQL is logged with
// placeholders so bound values such as emails never reach the log.
func NewGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	std, err := zap.NewStdLogAt(log.Named("gorm"), zap.WarnLevel)
	if err != nil {
		return logger.Discard
	}
	return logger.New(std, logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
		Colorful:                  false,
	})
}
