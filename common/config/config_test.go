package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfig_GetDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "scout",
		Password: "secret",
		Database: "scout",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=scout password=secret dbname=scout sslmode=disable", c.GetDSN())
}

func TestMQTTConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_CLIENT_ID", "scout-1")
	t.Setenv("MQTT_QOS", "2")

	c := MQTTConfig{Broker: "tcp://localhost:1883", QoS: 1}
	c.LoadFromEnv("MQTT")

	assert.Equal(t, "tcp://broker:1883", c.Broker)
	assert.Equal(t, "scout-1", c.ClientID)
	assert.Equal(t, byte(2), c.QoS)
}

func TestMQTTConfig_LoadFromEnv_IgnoresInvalidQoS(t *testing.T) {
	t.Setenv("MQTT_QOS", "7")

	c := MQTTConfig{QoS: 1}
	c.LoadFromEnv("MQTT")

	assert.Equal(t, byte(1), c.QoS)
}

func TestRedisConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")

	c := RedisConfig{Addr: "localhost:6379"}
	c.LoadFromEnv("REDIS")

	assert.Equal(t, "redis:6380", c.Addr)
	assert.Equal(t, 3, c.DB)
}

func TestDatabaseConfig_LoadFromEnv_Pool(t *testing.T) {
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MAX_IDLE", "bad")

	c := DatabaseConfig{Port: 5432, MaxIdle: 2}
	c.LoadFromEnv("DB")

	assert.Equal(t, 6543, c.Port)
	assert.Equal(t, 8, c.MaxConns)
	assert.Equal(t, 2, c.MaxIdle)
}

func TestMQTTConfig_Validate(t *testing.T) {
	c := MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "scout-gateway", QoS: 1}
	assert.NoError(t, c.Validate())

	c.ClientID = ""
	assert.Error(t, c.Validate())

	c = MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "scout-gateway", QoS: 3}
	assert.Error(t, c.Validate())
}

func TestDatabaseConfig_Validate(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, Database: "scout", MaxConns: 4, MaxIdle: 2}
	assert.NoError(t, c.Validate())

	c.MaxIdle = 10
	assert.Error(t, c.Validate())

	c = DatabaseConfig{Host: "db", Port: 0, Database: "scout"}
	assert.Error(t, c.Validate())
}
