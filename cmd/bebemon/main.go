package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/robotalks/bebe.go/pkg/remote/comm/mqtt"
	"github.com/robotalks/bebe.go/pkg/remote/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/"
)

func init() {
	if val := os.Getenv("BEBE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

// describe formats a bridge packet for display.
func describe(payload []byte) string {
	typed, err := msgs.DecodeTyped(payload)
	if err != nil {
		return "bad message: " + err.Error()
	}
	msg, err := typed.Decode()
	if err != nil {
		return fmt.Sprintf("decode error: (type_id=%x) %v", typed.TypeId, err)
	}
	return fmt.Sprintf("#%d [%s] %s", typed.Sequence,
		reflect.Indirect(reflect.ValueOf(msg)).Type().Name(),
		msg.(msgs.SerializableMessage).Serializable().String())
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	token := q.Connect()
	if token.Wait(); token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("#", func(topic string, payload []byte) {
		if strings.HasSuffix(topic, "/meta") {
			if len(payload) == 0 {
				log.Printf("%s: withdrawn", topic)
				return
			}
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		log.Printf("%s: %s", topic, describe(payload))
	})
	<-(chan struct{})(nil)
}
