// Package server implements the real-time core of roomchat: the websocket
// endpoint, the hub event loop, and the presence, fan-out and typing
// handlers that run on it.
//
// Every connection gets a read pump and a write pump. The read pump decodes
// frames into events and submits them to the hub; the hub applies them in
// order against a rooms.Registry and queues outgoing frames on each
// connection's send channel, which the write pump drains. A connection whose
// queue is full is disconnected rather than allowed to stall delivery.
package server
