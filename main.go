package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/kpizzy812/sol-management/internal/db"
	"github.com/kpizzy812/sol-management/internal/handler"
	"github.com/kpizzy812/sol-management/internal/ledger"
	"github.com/kpizzy812/sol-management/internal/listener"
	"github.com/kpizzy812/sol-management/internal/relay"
	"github.com/kpizzy812/sol-management/internal/services"
)

type Config struct {
	MySQL struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		DBName   string `mapstructure:"dbname"`
	} `mapstructure:"mysql"`
	Solana struct {
		RPCURL          string   `mapstructure:"rpc_url"`
		Cluster         string   `mapstructure:"cluster"`          // "devnet" 或 "mainnet-beta"
		FeeLamports     uint64   `mapstructure:"fee_lamports"`     // 预估交易费
		PriorityFee     uint64   `mapstructure:"priority_fee"`     // microlamports per compute unit
		ReserveLamports uint64   `mapstructure:"reserve_lamports"` // 本地保留余额，默认 15000000
		WalletSecrets   []string `mapstructure:"wallet_secrets"`   // base58 私钥列表
		DryRun          bool     `mapstructure:"dry_run"`          // 使用内存账本（不连链）
	} `mapstructure:"solana"`
	Relay struct {
		AppURL       string `mapstructure:"app_url"`       // 外部签名器展示的 metadata 页面
		RedirectBase string `mapstructure:"redirect_base"` // 回调地址前缀
		HandshakeTTL int    `mapstructure:"handshake_ttl"` // 秒
		PollInterval int    `mapstructure:"poll_interval"` // 秒
	} `mapstructure:"relay"`
	App struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"app"`
}

func main() {
	// 读取配置
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal("read config failed:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatal("parse config failed:", err)
	}

	// 连接 MySQL 并初始化 DB
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.MySQL.User, cfg.MySQL.Password, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.DBName)
	dbConn, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("mysql connect failed:", err)
	}

	if err := dbConn.AutoMigrate(&db.CollectorConfig{}, &db.RelayHandshake{}, &db.SweepReceipt{}); err != nil {
		log.Fatal("auto migrate failed:", err)
	}
	db.DB = dbConn

	// 账本：正式环境走 RPC，dry_run 用内存账本
	var (
		chain     ledger.Ledger
		builder   ledger.TxBuilder
		rpcClient *rpc.Client
	)
	if cfg.Solana.DryRun {
		mem := ledger.NewMemoryLedger(cfg.Solana.FeeLamports)
		chain, builder = mem, mem
		log.Println("dry-run mode: using in-memory ledger")
	} else {
		if cfg.Solana.RPCURL == "" {
			log.Fatal("solana.rpc_url is empty in config")
		}
		sol := ledger.NewSolanaLedger(cfg.Solana.RPCURL, cfg.Solana.FeeLamports, cfg.Solana.PriorityFee)
		chain, builder = sol, sol
		rpcClient = sol.Client()
	}

	// 托管钱包私钥
	keyring, err := services.LoadKeyring(cfg.Solana.WalletSecrets)
	if err != nil {
		log.Fatal("load keyring failed:", err)
	}
	log.Printf("loaded %d managed wallets", keyring.Len())

	collector := services.NewCollectorService(dbConn, cfg.Solana.ReserveLamports)
	sweeps := services.NewSweepService(dbConn, chain, collector)

	cluster := cfg.Solana.Cluster
	if cluster == "" {
		cluster = "mainnet-beta"
	}
	rel := relay.New(dbConn, cluster, cfg.Relay.AppURL, cfg.Relay.RedirectBase,
		time.Duration(cfg.Relay.HandshakeTTL)*time.Second)

	// 后台对账循环
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Start(ctx, dbConn, rpcClient, rel, time.Duration(cfg.Relay.PollInterval)*time.Second)

	// 初始化 Gin
	handler.InitStartTime()
	r := gin.Default()
	handler.RegisterRoutes(r, &handler.Handler{
		DB:        dbConn,
		Collector: collector,
		Sweeps:    sweeps,
		Keyring:   keyring,
		Relay:     rel,
		Builder:   builder,
		Cluster:   cluster,
	})

	port := fmt.Sprintf(":%d", cfg.App.Port)
	log.Printf("server listening on %s", port)
	if err := r.Run(port); err != nil {
		log.Fatal("gin server failed:", err)
	}
}
