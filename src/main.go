package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"path"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"cadence/src/autoplay"
	"cadence/src/handler/api"
	"cadence/src/history"
	"cadence/src/library"
	"cadence/src/nowplaying"
	"cadence/src/player"
	"cadence/src/player/mpd"
	"cadence/src/resolver"
	"cadence/src/util"
)

const confFile = "config.yaml"

var (
	build       = "%BUILD%"
	version     = "%VERSION%"
	versionDate = "%VERSION_DATE%"
)

type config struct {
	Address string `yaml:"bind"`
	URLRoot string `yaml:"url_root"`

	StorageDir string `yaml:"storage_dir"`

	Autoplay bool `yaml:"autoplay"`
	MPRIS    bool `yaml:"mpris"`

	Services struct {
		Resolver    string `yaml:"resolver"`
		Recommender string `yaml:"recommender"`
		History     string `yaml:"history"`
		Likes       string `yaml:"likes"`
		AuthToken   string `yaml:"auth_token"`
	} `yaml:"services"`

	MPD struct {
		Network          string  `yaml:"network"`
		Address          string  `yaml:"address"`
		Password         *string `yaml:"password"`
		MediaURLTemplate string  `yaml:"media_url_template"`
	} `yaml:"mpd"`
}

func (conf *config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	if conf.MPD.Address == "" {
		errs = append(errs, fmt.Errorf("config: `mpd.address` is required"))
	}
	if conf.Services.Resolver == "" {
		errs = append(errs, fmt.Errorf("config: `services.resolver` is required"))
	}
	if conf.Autoplay && conf.Services.Recommender == "" {
		errs = append(errs, fmt.Errorf("config: autoplay requires `services.recommender`"))
	}
	return
}

func LoadConfig(filename string) (*config, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	var conf config
	if err := d.Decode(&conf); err != nil {
		return nil, err
	}

	if conf.MPD.Network == "" {
		conf.MPD.Network = "tcp"
	}
	if conf.StorageDir == "" {
		conf.StorageDir = path.Join(xdg.DataHome, "cadence")
	}
	return &conf, nil
}

func main() {
	defaultLogLevel := "warn"
	if build == "debug" {
		defaultLogLevel = "debug"
	}

	configFile := flag.String("conf", confFile, "Path to the configuration file")
	printVersion := flag.Bool("version", false, "Print version information and exit")
	logLevel := flag.String("log", defaultLogLevel, "Sets the log level. [debug, info, warn, error]")
	flag.Parse()

	if ll, err := log.ParseLevel(*logLevel); err != nil {
		log.Fatalf("Could not parse log level: %v", err)
	} else {
		log.SetLevel(ll)
	}

	if *printVersion {
		fmt.Printf("Version: %v (%v)\n", version, versionDate)
		fmt.Printf("Build: %v\n", build)
		return
	}

	log.Infof("Version: %v (%v)\n", version, build)
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		log.Fatalf("Could not load config: %v", errs)
	}

	storeDir := strings.Replace(config.StorageDir, "~", os.Getenv("HOME"), 1)
	if err := os.MkdirAll(storeDir, 0755); err != nil {
		log.Fatalf("Unable to create storage dir: %v", err)
	}
	log.Infof("Using %q for storage", storeDir)

	volumeStore, err := util.NewPersistentStorage(path.Join(storeDir, "volume.json"), 75)
	if err != nil {
		log.Fatalf("Unable to create volume store: %v", err)
	}

	var hist history.Store
	if config.Services.History != "" && config.Services.AuthToken != "" {
		hist = history.NewRemoteStore(config.Services.History, config.Services.AuthToken)
	} else {
		local, err := history.NewLocalStore(path.Join(storeDir, "history.json"))
		if err != nil {
			log.Fatalf("Unable to create history store: %v", err)
		}
		hist = local
	}

	var extender player.Extender
	if config.Services.Recommender != "" {
		extender = autoplay.NewExtender(autoplay.NewClient(config.Services.Recommender), hist)
	}

	var likes *library.LikesClient
	if config.Services.Likes != "" {
		likes = library.NewLikesClient(config.Services.Likes)
	}

	emb := mpd.Connect(config.MPD.Network, config.MPD.Address, config.MPD.Password, config.MPD.MediaURLTemplate)
	res := resolver.New(resolver.NewClient(config.Services.Resolver))

	pl := player.New(emb, res, player.Config{
		Extender:    extender,
		History:     hist,
		VolumeStore: volumeStore,
		Autoplay:    config.Autoplay,
	})
	pl.Start(context.Background())
	defer pl.Close()

	if config.MPRIS {
		np, err := nowplaying.New(pl)
		if err != nil {
			log.Warnf("Could not register media controls: %v", err)
		} else {
			defer np.Close()
		}
	}

	r := chi.NewRouter()
	r.Use(util.LogHandler)
	r.Use(util.Gzip)
	r.Route(path.Join("/", config.URLRoot, "api"), func(r chi.Router) {
		api.InitRouter(r, pl, hist, likes)
	})
	if build == "debug" {
		r.Get("/debug/pprof/*", pprof.Index)
	}

	log.Infof("Now accepting HTTP connections on %v", config.Address)
	server := &http.Server{
		Addr:           config.Address,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatalf("Error running webserver: %v", server.ListenAndServe())
}
