// SPDX-License-Identifier: ice License 1.0

package kvstore

import (
	"context"
	"encoding"
	"fmt"
	"runtime"
	"strings"
	"sync"
	stdlibtime "time"

	"github.com/goccy/go-reflect"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	appCfg "github.com/ice-blockchain/accountr/config"
	"github.com/ice-blockchain/accountr/log"
)

//nolint:gomnd // Configs.
func MustConnect(ctx context.Context, applicationYAMLKey string) DB {
	var cfg config
	appCfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	if cfg.AccountrKVStore.ConnectionsPerCore == 0 {
		cfg.AccountrKVStore.ConnectionsPerCore = 10
	}
	if cfg.AccountrKVStore.URL == "" {
		log.Panic(errors.New("kvstore url is required"))
	}
	opts, err := redis.ParseURL(cfg.AccountrKVStore.URL)
	log.Panic(err) //nolint:revive // That's intended.
	if opts.Username == "" {
		opts.Username = cfg.AccountrKVStore.Credentials.User
	}
	if opts.Password == "" {
		opts.Password = cfg.AccountrKVStore.Credentials.Password
	}
	opts.ClientName = applicationYAMLKey
	opts.MaxRetries = 25
	opts.MinRetryBackoff = 10 * stdlibtime.Millisecond
	opts.MaxRetryBackoff = 1 * stdlibtime.Second
	opts.DialTimeout = 30 * stdlibtime.Second
	opts.ReadTimeout = 30 * stdlibtime.Second
	opts.WriteTimeout = 30 * stdlibtime.Second
	opts.ConnMaxIdleTime = 60 * stdlibtime.Second
	opts.ContextTimeoutEnabled = true
	opts.PoolFIFO = true
	opts.PoolSize = cfg.AccountrKVStore.ConnectionsPerCore * runtime.GOMAXPROCS(-1)
	opts.MinIdleConns = 1
	opts.MaxIdleConns = 1
	client := redis.NewClient(opts)
	result, err := client.Ping(ctx).Result()
	log.Panic(err)
	if result != "PONG" {
		log.Panic(errors.Errorf("unexpected ping response: %v", result))
	}

	return client
}

func Set(ctx context.Context, db DB, values ...interface{ Key() string }) error {
	if len(values) == 1 {
		value := values[0]
		if value == nil {
			return nil
		}
		_, err := db.HSet(ctx, value.Key(), SerializeValue(value)...).Result()

		return err //nolint:wrapcheck // Not needed.
	}
	cmds, err := db.Pipelined(ctx, func(pipeliner redis.Pipeliner) error {
		for _, value := range values {
			if value == nil {
				continue
			}
			if err := pipeliner.HSet(ctx, value.Key(), SerializeValue(value)...).Err(); err != nil {
				return err //nolint:wrapcheck // Not needed.
			}
		}

		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck // Not needed.
	}
	errs := make([]error, 0, len(cmds))
	for _, cmd := range cmds {
		errs = append(errs, cmd.Err())
	}

	return multierror.Append(nil, errs...).ErrorOrNil() //nolint:wrapcheck // Not needed.
}

func Get[T any](ctx context.Context, db DB, key string) (*T, error) { //nolint:varnamelen // .
	sliceResult := db.HMGet(ctx, key, processRedisFieldTags[T]()...)
	var resp any = new(T)
	if err := DeserializeValue(resp, sliceResult.Scan); err != nil {
		return nil, err
	}
	anyNonNil := false
	for _, val := range sliceResult.Val() {
		if val != nil {
			anyNonNil = true

			break
		}
	}
	if !anyNonNil {
		return nil, nil //nolint:nilnil // Absence is not an error.
	}
	if intf, ok := resp.(interface{ SetKey(string) }); ok {
		intf.SetKey(key)
	}

	return resp.(*T), nil //nolint:forcetypeassert // We know for sure.
}

func Del(ctx context.Context, db DB, keys ...string) error {
	return errors.Wrapf(db.Del(ctx, keys...).Err(), "failed to delete keys %#v", keys)
}

// .
var (
	//nolint:gochecknoglobals // Singleton.
	typeCache = new(sync.Map)
)

func processRedisFieldTags[TT any]() []string {
	fieldNames, found := typeCache.Load(*new(TT))
	if !found {
		val := new(TT)
		fieldNames, _ = typeCache.LoadOrStore(*val, collectFields(reflect.TypeOf(val).Elem()))
	}
	fields := fieldNames.([]string) //nolint:forcetypeassert,errcheck // We know for sure.
	if len(fields) == 0 {
		log.Panic(fmt.Sprintf("%#v has no redis tags", new(TT)))
	}

	return fields
}

func collectFields(elem reflect.Type) (fields []string) {
	if elem.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < elem.NumField(); i++ {
		if field := elem.Field(i); field.Anonymous {
			embeddedElem := field.Type
			if embeddedElem.Kind() == reflect.Ptr {
				embeddedElem = embeddedElem.Elem()
			}
			fields = append(fields, collectFields(embeddedElem)...)
		} else if redisTag := field.Tag.Get("redis"); redisTag != "" && redisTag != "-" {
			redisTag, _, _ = strings.Cut(redisTag, ",")
			fields = append(fields, redisTag)
		}
	}

	return fields
}

func DeserializeValue(value any, scan func(any) error) error {
	if err := scan(value); err != nil {
		return err
	}
	typ, val := reflect.TypeOf(value).Elem(), reflect.ValueOf(value).Elem()
	for ix := 0; ix < typ.NumField(); ix++ {
		typeField := typ.Field(ix)
		if !typeField.Anonymous {
			continue
		}
		valueField := val.Field(ix)
		if valueField.Kind() == reflect.Ptr && valueField.IsNil() && valueField.CanSet() {
			valueField.Set(reflect.New(typeField.Type.Elem()))
		}
		if valueField.Kind() == reflect.Struct && valueField.CanAddr() {
			valueField = valueField.Addr()
		}
		if valueField.Kind() == reflect.Ptr && valueField.CanInterface() {
			if err := DeserializeValue(valueField.Interface(), scan); err != nil {
				return err
			}
		}
	}

	return nil
}

func SerializeValue(value any) []any {
	reflVal := reflect.ValueOf(value)
	if reflVal.Type().Kind() == reflect.Ptr {
		if reflVal.IsNil() {
			log.Panic(fmt.Sprintf("`%#v` is nil", value))
		}
		reflVal = reflVal.Elem()
	}
	if reflVal.Type().Kind() != reflect.Struct {
		log.Panic(fmt.Sprintf("`%#v` is not a struct or a pointer to a struct", value))
	}

	return serializeStructFields(reflVal)
}

func serializeStructFields(value reflect.Value) (resp []any) { //nolint:gocognit,revive,cyclop // .
	typ := value.Type()
	for ix := 0; ix < typ.NumField(); ix++ {
		typeField := typ.Field(ix)
		if typeField.Anonymous {
			field := value.Field(ix)
			if typeField.Type.Kind() == reflect.Ptr {
				if field.IsNil() {
					continue
				}
				field = field.Elem()
			}
			if field.Type().Kind() == reflect.Struct {
				resp = append(resp, serializeStructFields(field)...)
			}

			continue
		}
		tag := typeField.Tag.Get("redis")
		if tag == "" || tag == "-" {
			continue
		}
		name, opt, _ := strings.Cut(tag, ",")
		if name == "" {
			continue
		}

		field := value.Field(ix)

		if omitEmpty(opt) && isEmptyValue(field) {
			continue
		}

		if field.CanInterface() {
			switch typedVal := field.Interface().(type) {
			case encoding.BinaryMarshaler:
				data, err := typedVal.MarshalBinary()
				log.Panic(err)
				resp = append(resp, name, string(data))
			case stdlibtime.Duration:
				resp = append(resp, name, fmt.Sprint(typedVal.Nanoseconds()))
			case string:
				resp = append(resp, name, typedVal)
			default:
				resp = append(resp, name, fmt.Sprint(typedVal))
			}
		}
	}

	return resp
}

func omitEmpty(opt string) bool {
	for opt != "" {
		var name string
		name, opt, _ = strings.Cut(opt, ",") //nolint:revive // Not a problem here.
		if name == "omitempty" {
			return true
		}
	}

	return false
}

func isEmptyValue(value reflect.Value) bool {
	switch value.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return value.Len() == 0
	case reflect.Bool:
		return !value.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return value.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return value.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return value.IsNil()
	case reflect.Struct:
		return value.IsZero()
	case reflect.Invalid, reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	default:
		return value.IsZero()
	}
}
