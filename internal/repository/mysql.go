package repository

import (
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

func NewMySQLDB(user, password, dbname, host string, port int, historyLimit int, logger *logger.Logger) (*SQLDB, error) {
	cfg := mysqldriver.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = dbname
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}

	db, err := gorm.Open(mysql.Open(cfg.FormatDSN()), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	store, err := newSQLDB(db, historyLimit, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Successfully connected to MySQL!")
	return store, nil
}
