package main

import (
	"log"
	"os"

	"github.com/tuyishimwe/umurinzi/core"
	"github.com/tuyishimwe/umurinzi/core/alert"
	"github.com/tuyishimwe/umurinzi/core/risk"
	logsvc "github.com/tuyishimwe/umurinzi/services/logger"
	smssvc "github.com/tuyishimwe/umurinzi/services/sms"
	"github.com/tuyishimwe/umurinzi/storage/database"
	sqlxrepos "github.com/tuyishimwe/umurinzi/storage/database/sqlx"

	emailsvc "github.com/tuyishimwe/umurinzi/services/email"
)

var stdLogger *log.Logger

func main() {
	defer os.Exit(0)

	stdLogger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	// set up services
	var mailSvc core.EmailSender
	var smsSvc core.SMSSender
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
		smsSvc = smssvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf)
		smsSvc = smssvc.NewGatewayService(conf)
	}

	studentRepo := sqlxrepos.NewStudentRepository(db)
	alertSvc := alert.NewService(sqlxrepos.NewMessageRepository(db), studentRepo, mailSvc, smsSvc, logger, conf)
	notifier := alert.NewFlagNotifier(alertSvc, logger)
	riskSvc := risk.NewService(sqlxrepos.NewFlagRepository(db), studentRepo, notifier, logger, conf)

	// start CLI
	cli := commandLine{
		db:       db,
		riskSvc:  riskSvc,
		alertSvc: alertSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		stdLogger.Fatal(err)
	}
}
