// Package mqtt provides the MQTT client used by lwm2md.
//
// The broker connects lwm2md to the CoAP gateway that terminates device
// traffic. The gateway publishes registration requests and encoded resource
// payloads; lwm2md publishes registration lifecycle events and decoded
// resource state.
//
//	CoAP gateway ↔ MQTT broker ↔ lwm2md
//
// # Topics
//
//	lwm2m/rd/{op}                                   gateway → lwm2md (register, update, deregister)
//	lwm2m/uplink/{endpoint}/{format}/{object}/{instance}  gateway → lwm2md
//	lwm2m/registration/{endpoint}/{event}           lwm2md → consumers
//	lwm2m/state/{endpoint}/{object}/{instance}      lwm2md → consumers
//	lwm2m/system/status                             online/offline, LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllUplinks(), 1,
//	    func(topic string, payload []byte) error {
//	        return bridge.HandleUplink(ctx, topic, payload)
//	    })
//
// Subscriptions are restored automatically after a reconnect. Handlers run
// on paho's goroutines with panic recovery.
package mqtt
