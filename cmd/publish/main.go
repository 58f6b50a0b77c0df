package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ogurasousui/docack/internal/adapters/repository/postgres"
	"github.com/ogurasousui/docack/internal/core/document"
	"github.com/ogurasousui/docack/internal/core/employee"
	"github.com/ogurasousui/docack/internal/core/ledger"
	"github.com/ogurasousui/docack/internal/platform/config"
	pg "github.com/ogurasousui/docack/internal/platform/db/postgres"
	"github.com/ogurasousui/docack/internal/platform/logging"
)

const usage = `usage: publish [-config path] <command> [flags]

commands:
  publish      -title T -kind K -deadline YYYY-MM-DD (-department NAME|ID | -all)
  progress     <document-id>
  departments`

// deadlineLayout は -deadline の入力形式です。
const deadlineLayout = "2006-01-02"

var errUsage = errors.New("invalid usage")

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.Fatal("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, command string, args []string) error {
	cfg.Database.ApplicationName = "docack-publish"
	dbPool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	departmentRepo := postgres.NewDepartmentRepository(dbPool)
	documentRepo := postgres.NewDocumentRepository(dbPool)

	switch command {
	case "publish":
		// 通知は documents の INSERT トリガー経由でボット側が配信する。
		docs := document.NewService(documentRepo, departmentRepo, nil, pg.NewTransactionManager(dbPool), func(_ context.Context, doc *document.Document) {
			logger.Info("document published",
				zap.String("document_id", doc.ID),
				zap.String("department_id", doc.DepartmentID),
			)
		})
		return runPublish(ctx, docs, departmentRepo, args)
	case "progress":
		if len(args) != 1 {
			return errUsage
		}
		directory := employee.NewService(postgres.NewEmployeeRepository(dbPool), departmentRepo, nil, nil)
		acknowledgments := ledger.NewService(postgres.NewAcknowledgmentRepository(dbPool), documentRepo, directory, nil)
		return runProgress(ctx, acknowledgments, args[0])
	case "departments":
		depts, err := departmentRepo.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range depts {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
		return nil
	default:
		return errUsage
	}
}

func runPublish(ctx context.Context, docs *document.Service, departments *postgres.DepartmentRepository, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	var (
		title      = fs.String("title", "", "document title")
		kind       = fs.String("kind", "", "document kind")
		deadline   = fs.String("deadline", "", "acknowledgment deadline (YYYY-MM-DD)")
		department = fs.String("department", "", "target department name or id")
		all        = fs.Bool("all", false, "publish one document per department")
	)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *all == (*department != "") {
		return fmt.Errorf("%w: exactly one of -department or -all is required", errUsage)
	}

	due, err := time.Parse(deadlineLayout, strings.TrimSpace(*deadline))
	if err != nil {
		return fmt.Errorf("parse deadline: %w", document.ErrInvalidDeadline)
	}

	in := document.PublishInput{
		Title:          *title,
		Kind:           *kind,
		Deadline:       due,
		AllDepartments: *all,
	}
	if !*all {
		deptID, err := resolveDepartment(ctx, departments, *department)
		if err != nil {
			return err
		}
		in.DepartmentID = deptID
	}

	created, err := docs.Publish(ctx, in)
	if err != nil {
		return err
	}

	for _, doc := range created {
		fmt.Printf("%s\t%s\t%s\n", doc.ID, doc.DepartmentID, doc.Code)
	}
	return nil
}

func resolveDepartment(ctx context.Context, departments *postgres.DepartmentRepository, key string) (string, error) {
	key = strings.TrimSpace(key)
	list, err := departments.List(ctx)
	if err != nil {
		return "", err
	}
	for _, d := range list {
		if d.ID == key || strings.EqualFold(d.Name, key) {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", document.ErrDepartmentNotFound, key)
}

func runProgress(ctx context.Context, acknowledgments *ledger.Service, documentID string) error {
	p, err := acknowledgments.Progress(ctx, documentID)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%d/%d\t%d%%\n", p.DocumentID, p.Readers, p.Eligible, p.Percent())
	return nil
}
