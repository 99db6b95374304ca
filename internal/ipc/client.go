package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Aircheck.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Aircheck.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StationAdd registers a new station with the daemon.
func (c *Client) StationAdd(name, streamURL string) (*StationAddResponse, error) {
	var resp StationAddResponse
	req := StationAddRequest{Name: name, StreamURL: streamURL}
	if err := c.client.Call("Aircheck.StationAdd", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StationList returns all registered stations.
func (c *Client) StationList() (*StationListResponse, error) {
	var resp StationListResponse
	if err := c.client.Call("Aircheck.StationList", StationListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StationRemove deletes a station.
func (c *Client) StationRemove(id int64) (*StationRemoveResponse, error) {
	var resp StationRemoveResponse
	if err := c.client.Call("Aircheck.StationRemove", StationRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StationRestart bounces one station's worker.
func (c *Client) StationRestart(id int64) (*StationRestartResponse, error) {
	var resp StationRestartResponse
	if err := c.client.Call("Aircheck.StationRestart", StationRestartRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StatsTop returns the most-played tracks.
func (c *Client) StatsTop(limit int) (*StatsTopResponse, error) {
	var resp StatsTopResponse
	if err := c.client.Call("Aircheck.StatsTop", StatsTopRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Detections returns recent finalized detections.
func (c *Client) Detections(stationID int64, limit int) (*DetectionsResponse, error) {
	var resp DetectionsResponse
	req := DetectionsRequest{StationID: stationID, Limit: limit}
	if err := c.client.Call("Aircheck.Detections", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Aircheck.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
