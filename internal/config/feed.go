package config

import (
	"net/netip"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	feeddomain "github.com/smallbiznis/crmfeed/internal/feed/domain"
	orderdomain "github.com/smallbiznis/crmfeed/internal/order/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeedOptions are the integration settings of one shop.
type FeedOptions struct {
	SystemID               string            `mapstructure:"system_id"`
	APIKey                 string            `mapstructure:"api_key"`
	ShopID                 int               `mapstructure:"shop_id"`
	Locale                 string            `mapstructure:"locale"`
	CategoryID             string            `mapstructure:"category_id"`
	FolderName             string            `mapstructure:"folder_name"`
	SyncProductDescription bool              `mapstructure:"sync_product_desc"`
	WCMapping              string            `mapstructure:"wc_mapping"`
	EPOMapping             string            `mapstructure:"epo_mapping"`
	EPOEnabled             bool              `mapstructure:"epo_enabled"`
	VATNumberEnabled       bool              `mapstructure:"vat_number_enabled"`
	TaxBasedOn             string            `mapstructure:"tax_based_on"`
	BaseLocation           BaseLocation      `mapstructure:"base_location"`
	PriceDecimals          int               `mapstructure:"price_decimals"`
	ProjectStatuses        map[string]string `mapstructure:"project_statuses"`
	AllowedIPs             []string          `mapstructure:"allowed_ips"`
	ProxyHeader            string            `mapstructure:"proxy_header"`
	ProxyIPStart           string            `mapstructure:"proxy_ip_start"`
	ProxyIPEnd             string            `mapstructure:"proxy_ip_end"`
	Debug                  bool              `mapstructure:"debug"`
	TestServer             bool              `mapstructure:"test_server"`
}

// BaseLocation is the shop's own address, used when an order has none.
type BaseLocation struct {
	Country  string `mapstructure:"country"`
	State    string `mapstructure:"state"`
	Postcode string `mapstructure:"postcode"`
	City     string `mapstructure:"city"`
}

func DefaultFeedOptions() FeedOptions {
	return FeedOptions{
		Locale:        string(feeddomain.LocaleHU),
		TaxBasedOn:    "billing",
		BaseLocation:  BaseLocation{Country: "HU"},
		PriceDecimals: 2,
		AllowedIPs:    []string{"127.0.0.1", "::1"},
	}
}

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	apiKeyRe = regexp.MustCompile(`^[a-zA-Z0-9]{32}$`)
)

// Validate checks the options a feed build needs.
func (o FeedOptions) Validate() error {
	if _, err := feeddomain.ParseLocale(o.Locale); err != nil {
		return err
	}
	if !digitsRe.MatchString(o.CategoryID) {
		return feeddomain.ConfigErrorf("The category ID is required and should consist of digits only.")
	}
	if strings.TrimSpace(o.FolderName) == "" {
		return feeddomain.ConfigErrorf("The folder name is required.")
	}
	if o.ShopID < 0 || o.ShopID > 99 {
		return feeddomain.ConfigErrorf("The shop ID should be between 0 and 99.")
	}
	if o.PriceDecimals < 0 {
		return feeddomain.ConfigErrorf("The price decimals cannot be negative.")
	}
	switch strings.ToLower(o.TaxBasedOn) {
	case "", "billing", "shipping", "base":
	default:
		return feeddomain.ConfigErrorf("Unexpected tax basis '%s'", o.TaxBasedOn)
	}

	var invalid []string
	for _, mapping := range o.FieldMappings() {
		if !orderdomain.IsField(mapping.Source) {
			return feeddomain.ConfigErrorf("Unknown order field '%s' in mapping.", mapping.Source)
		}
		if !feeddomain.IsValidXMLName(mapping.Target) {
			invalid = append(invalid, mapping.Target)
		}
	}
	for _, mapping := range o.EPOMappings() {
		if !feeddomain.IsValidXMLName(mapping.Target) {
			invalid = append(invalid, mapping.Target)
		}
	}
	if len(invalid) > 0 {
		return feeddomain.ConfigErrorf("The following CRM mappings are invalid: %s", strings.Join(invalid, ", "))
	}

	if o.ProxyHeader != "" {
		if _, err := netip.ParseAddr(o.ProxyIPStart); err != nil {
			return feeddomain.ConfigErrorf("Invalid proxy range start '%s'.", o.ProxyIPStart)
		}
		if _, err := netip.ParseAddr(o.ProxyIPEnd); err != nil {
			return feeddomain.ConfigErrorf("Invalid proxy range end '%s'.", o.ProxyIPEnd)
		}
	}
	return nil
}

// ValidateSync additionally checks the CRM credentials.
func (o FeedOptions) ValidateSync() error {
	if err := o.Validate(); err != nil {
		return err
	}
	if !digitsRe.MatchString(o.SystemID) {
		return feeddomain.ConfigErrorf("The System ID is required and should consist of digits only.")
	}
	if !apiKeyRe.MatchString(o.APIKey) {
		return feeddomain.ConfigErrorf("The API key is required and should consist of 32 alphanumeric characters.")
	}
	return nil
}

func (o FeedOptions) FieldMappings() []feeddomain.FieldMapping {
	return feeddomain.ParseMapping(o.WCMapping)
}

func (o FeedOptions) EPOMappings() []feeddomain.FieldMapping {
	return feeddomain.ParseMapping(o.EPOMapping)
}

// FeedConfigHolder keeps the current options and swaps them on file change.
type FeedConfigHolder struct {
	current atomic.Value // holds FeedOptions
}

// NewFeedConfigHolder loads feed.yml from the standard locations.
func NewFeedConfigHolder(log *zap.Logger) (*FeedConfigHolder, error) {
	v := viper.New()
	v.SetConfigName("feed")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/crmfeed")
	v.AddConfigPath(".")
	return newFeedConfigHolder(log, v)
}

// NewFeedConfigHolderFromFile loads the options from an explicit file.
func NewFeedConfigHolderFromFile(log *zap.Logger, path string) (*FeedConfigHolder, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return newFeedConfigHolder(log, v)
}

// NewStaticFeedConfigHolder holds fixed options and never reloads.
func NewStaticFeedConfigHolder(opts FeedOptions) *FeedConfigHolder {
	holder := &FeedConfigHolder{}
	holder.current.Store(opts)
	return holder
}

func newFeedConfigHolder(log *zap.Logger, v *viper.Viper) (*FeedConfigHolder, error) {
	log = log.Named("config.feed")

	v.SetEnvPrefix("CRMFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeedOptions()
	v.SetDefault("feed.locale", defaults.Locale)
	v.SetDefault("feed.tax_based_on", defaults.TaxBasedOn)
	v.SetDefault("feed.base_location.country", defaults.BaseLocation.Country)
	v.SetDefault("feed.price_decimals", defaults.PriceDecimals)
	v.SetDefault("feed.allowed_ips", defaults.AllowedIPs)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
		log.Warn("feed config not found, using defaults")
	}

	opts, err := unmarshalFeed(v)
	if err != nil {
		return nil, err
	}

	holder := &FeedConfigHolder{}
	holder.current.Store(opts)

	// Incomplete options are allowed at startup so the about endpoint and
	// health checks work; builds and syncs validate on use.
	if err := opts.Validate(); err != nil {
		log.Warn("feed config incomplete", zap.Error(err))
	}

	if found {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			updated, err := unmarshalFeed(v)
			if err != nil {
				log.Error("reload failed", zap.Error(err))
				return
			}
			if err := updated.Validate(); err != nil {
				log.Warn("invalid config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

// unmarshalFeed decodes the merged settings so defaults fill keys the
// file leaves out.
func unmarshalFeed(v *viper.Viper) (FeedOptions, error) {
	var file struct {
		Feed FeedOptions `mapstructure:"feed"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return FeedOptions{}, err
	}
	return file.Feed, nil
}

func (h *FeedConfigHolder) Get() FeedOptions {
	return h.current.Load().(FeedOptions)
}
