// formcheckout serves forms whose priced submissions are handed over to a checkout.
// It's responsible for handling requests from the internet and storing persistent state in sqlite.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/TheLab-ms/formcheckout/engine"
	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/TheLab-ms/formcheckout/engine/settings"
	"github.com/TheLab-ms/formcheckout/modules/bridge"
	"github.com/TheLab-ms/formcheckout/modules/checkout"
	"github.com/TheLab-ms/formcheckout/modules/forms"
	"github.com/TheLab-ms/formcheckout/modules/pruning"
	"github.com/TheLab-ms/formcheckout/modules/session"
	"github.com/TheLab-ms/formcheckout/static"
	"github.com/caarlos0/env/v11"
	"github.com/julienschmidt/httprouter"
)

type Config struct {
	HttpAddr string `envDefault:":8080"`

	// Dir holds the sqlite database and signing keys.
	Dir string `envDefault:"."`

	// AdminPassword protects the form admin with HTTP basic auth. The admin is open when unset.
	AdminPassword string

	StripeKey string
	Currency  string `envDefault:"usd"`

	// SubmitRPS is the global rate limit for form submissions.
	SubmitRPS int `envDefault:"5"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	conf, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "FORMCHECKOUT_", UseFieldNameByDefault: true})
	if err != nil {
		panic(err)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		err := engine.CheckHealthProbe("http://localhost:8080/healthz") // assume server is running on the default port
		if err != nil {
			panic(err)
		}
		return
	}

	app, err := newApp(conf, getSelfURL(conf))
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	app.Run(ctx)
}

func newApp(conf Config, self *url.URL) (*engine.App, error) {
	database, err := db.Open(filepath.Join(conf.Dir, "formcheckout.sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	assets, err := fs.Sub(static.Assets, "assets")
	if err != nil {
		return nil, err
	}

	router := engine.NewRouter(nil)
	router.Handle("GET", "/healthz", engine.ServeHealthProbe(database))
	router.ServeFiles("/static/*filepath", assets)

	var (
		sessionIss  = engine.NewTokenIssuer(filepath.Join(conf.Dir, "session.pem"))
		eventLogger = engine.NewEventLogger(database)
		registry    = settings.NewRegistry()
	)

	a := engine.NewApp(conf.HttpAddr, router)

	sessionModule := session.New(database, self, sessionIss)
	a.Add(sessionModule)
	a.Router.Sessioner = sessionModule // IMPORTANT

	formsModule := forms.New(database, a.Lifecycle, settings.NewStore(database), registry, conf.SubmitRPS)
	formsModule.AdminPassword = conf.AdminPassword
	a.Add(formsModule)
	if conf.AdminPassword == "" {
		slog.Warn("form admin is not password protected")
	}

	checkoutModule := checkout.New(database, a.Lifecycle, self, eventLogger, conf.StripeKey, conf.Currency)
	a.Add(checkoutModule)
	if conf.StripeKey == "" {
		slog.Info("online payments disabled because a stripe key was not configured")
	}

	a.Add(bridge.New(formsModule, checkoutModule.Fees, checkoutModule, eventLogger))
	a.Add(pruning.New(database))

	router.Handle("GET", "/", func(r *http.Request, ps httprouter.Params) engine.Response {
		return engine.Redirect("/checkout", http.StatusFound)
	})
	return a, nil
}

func getSelfURL(conf Config) *url.URL {
	str := os.Getenv("SELF_URL")
	if str == "" {
		conn, err := net.Dial("udp4", "8.8.8.8:53")
		if err != nil {
			panic(err)
		}
		conn.Close()

		_, port, _ := net.SplitHostPort(conf.HttpAddr)
		str = fmt.Sprintf("http://%s:%s", conn.LocalAddr().(*net.UDPAddr).IP, port)
		slog.Info("discovered self URL", "url", str)
	}

	self, err := url.Parse(str)
	if err != nil {
		panic(err)
	}
	return self
}
