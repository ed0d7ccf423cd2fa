package flags

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/host-directory/common"
	"github.com/ruteri/host-directory/cryptoutils"
	"github.com/ruteri/host-directory/directory"
	"github.com/ruteri/host-directory/hostrules"
	"github.com/ruteri/host-directory/interfaces"
	"github.com/ruteri/host-directory/pipeline"
	"github.com/ruteri/host-directory/resolver"
	"github.com/ruteri/host-directory/schema"
	"github.com/ruteri/host-directory/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// Directory is everything a front end needs to serve host and service commands.
type Directory struct {
	Realm    string
	Schema   *schema.EntitySchema
	Backend  *directory.Backend
	Services *directory.ServiceCatalog
	Registry *pipeline.Registry
}

// ConfigureDirectory opens the entry stores and registers the host commands.
func ConfigureDirectory(cCtx *cli.Context, logger *slog.Logger) (*Directory, error) {
	realm := cCtx.String(RealmFlag.Name)
	baseDN := interfaces.EntryID(cCtx.String(BaseDNFlag.Name))

	var locations []interfaces.StorageBackendLocation
	for _, uri := range SplitList(cCtx.StringSlice(StoreFlag.Name)) {
		loc, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}

	store, err := storage.NewStoreFactory(logger).CreateMultiStore(locations)
	if err != nil {
		return nil, fmt.Errorf("opening entry stores: %w", err)
	}

	hostSchema, err := schema.NewHostSchema(baseDN)
	if err != nil {
		return nil, err
	}

	backend := directory.NewBackend(store, directory.DefaultOptions(), logger)
	services := directory.NewServiceCatalog(backend, baseDN, directory.DefaultServicePageSize, logger)

	var names interfaces.NameChecker
	if checker := configureNameChecker(cCtx, logger); checker != nil {
		names = checker
	}

	rules := hostrules.NewRules(realm, names, cryptoutils.X509Parser{}, services, logger)
	registry := pipeline.NewRegistry(pipeline.NewPipeline(backend, cCtx.Int(SizeLimitFlag.Name), logger))
	if err := registry.Register(rules.Commands(hostSchema)...); err != nil {
		return nil, err
	}

	return &Directory{
		Realm:    realm,
		Schema:   hostSchema,
		Backend:  backend,
		Services: services,
		Registry: registry,
	}, nil
}

// SplitList splits comma separated flag values and drops empty items.
func SplitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// configureNameChecker returns nil when no nameserver can be determined; adds
// without force then fail their DNS check.
func configureNameChecker(cCtx *cli.Context, logger *slog.Logger) *resolver.DNSChecker {
	server := cCtx.String(DNSServerFlag.Name)
	if server == "" {
		var err error
		server, err = resolver.ServerFromResolvConf(resolver.DefaultResolvConf)
		if err != nil {
			logger.Warn("No DNS server available", "err", err)
			return nil
		}
	}

	checker, err := resolver.NewDNSChecker(server, cCtx.Duration(DNSTimeoutFlag.Name), logger)
	if err != nil {
		logger.Warn("Could not configure DNS checks", "err", err)
		return nil
	}
	return checker
}

var RealmFlag = &cli.StringFlag{
	Name:    "realm",
	Value:   "EXAMPLE.COM",
	EnvVars: []string{"HOSTDIR_REALM"},
	Usage:   "kerberos realm of host principals",
}

var BaseDNFlag = &cli.StringFlag{
	Name:    "base-dn",
	Value:   "dc=example,dc=com",
	EnvVars: []string{"HOSTDIR_BASE_DN"},
	Usage:   "directory suffix entries are stored under",
}

var StoreFlag = &cli.StringSliceFlag{
	Name:    "store",
	Value:   cli.NewStringSlice("file://./hostdir-data"),
	EnvVars: []string{"HOSTDIR_STORE"},
	Usage:   "entry store URI (mem://, file://, s3://, vault://), repeat to replicate",
}

var DNSServerFlag = &cli.StringFlag{
	Name:    "dns-server",
	EnvVars: []string{"HOSTDIR_DNS_SERVER"},
	Usage:   "nameserver used to check host names, defaults to the first one in /etc/resolv.conf",
}
var DNSTimeoutFlag = &cli.DurationFlag{
	Name:  "dns-timeout",
	Value: 5 * time.Second,
	Usage: "timeout of a single DNS query",
}

var SizeLimitFlag = &cli.IntFlag{
	Name:  "sizelimit",
	Value: pipeline.DefaultSizeLimit,
	Usage: "maximum number of entries returned by find",
}

var OutputFlag = &cli.StringFlag{
	Name:  "output",
	Value: "json",
	Usage: "output format, json or yaml",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var DirectoryFlags = []cli.Flag{
	RealmFlag,
	BaseDNFlag,
	StoreFlag,
	DNSServerFlag,
	DNSTimeoutFlag,
	SizeLimitFlag,
	OutputFlag,
}
