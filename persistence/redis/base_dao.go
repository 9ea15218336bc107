package redis

import (
	"fmt"
	"strings"

	rd "github.com/redis/go-redis/v9"
)

type BaseDao struct {
	redisClient rd.UniversalClient
	namespace   string
}

func NewBaseDao(conf Config) *BaseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		DB:       conf.DB,
		PoolSize: conf.PoolSize,
	})
	return &BaseDao{
		redisClient: redisClient,
		namespace:   conf.Namespace,
	}
}

func (bs *BaseDao) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", bs.namespace, strings.Join(args, ":"))
}

func (bs *BaseDao) Client() rd.UniversalClient {
	return bs.redisClient
}

func (bs *BaseDao) Close() error {
	return bs.redisClient.Close()
}
