package http

import (
	"encoding/json"

	"github.com/akarpov/roomcast-server/internal/core"
	"github.com/akarpov/roomcast-server/internal/proto"
)

// inboundToCommand validates an inbound event and maps it to a core command.
// A non-nil proto.Error means the payload was rejected at the boundary and
// nothing reached the core. A malformed payload is a rejection like any
// other; it never terminates the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundJoiningPublicRoom, proto.InboundJoiningPrivateRoom, proto.InboundLeaveRoom:
		var data proto.RoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid room_id or user_id"}
		}
		if data.RoomID == "" || data.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid room_id or user_id"}
		}
		kind := core.CommandLeaveRoom
		switch inbound.Type {
		case proto.InboundJoiningPublicRoom:
			kind = core.CommandJoinPublicRoom
		case proto.InboundJoiningPrivateRoom:
			kind = core.CommandJoinPrivateRoom
		}
		return &core.Command{
			Kind:   kind,
			Room:   data.RoomID,
			UserID: data.UserID,
		}, nil

	case proto.InboundSendPublicMessage, proto.InboundSendPrivateMessage:
		var data proto.MessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid room_id or user_id"}
		}
		if data.RoomID == "" || data.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid room_id or user_id"}
		}
		kind := core.CommandSendPublicMessage
		if inbound.Type == proto.InboundSendPrivateMessage {
			kind = core.CommandSendPrivateMessage
		}
		return &core.Command{
			Kind:   kind,
			Room:   data.RoomID,
			UserID: data.UserID,
			Text:   data.Message,
		}, nil

	case proto.InboundUploadFile:
		var data proto.UploadData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid file_info or file_chunk"}
		}
		if data.RoomID == "" || data.UserID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid room_id or user_id"}
		}
		if data.FileInfo == nil || data.FileInfo.Filename == "" || data.FileInfo.UploadID == "" ||
			data.FileInfo.FileSize <= 0 || len(data.FileChunk) == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "Invalid file_info or file_chunk"}
		}
		return &core.Command{
			Kind:   core.CommandUploadChunk,
			Room:   data.RoomID,
			UserID: data.UserID,
			Chunk: &core.UploadChunk{
				UploadID: data.FileInfo.UploadID,
				Filename: data.FileInfo.Filename,
				Size:     data.FileInfo.FileSize,
				Data:     data.FileChunk,
			},
		}, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown event type"}
	}
}

// outboundFromEvent maps a core event to its wire representation.
func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventClientCount:
		return proto.Outbound{Type: proto.OutboundClientCount, Data: event.Count}
	case core.EventRoomCount:
		return proto.Outbound{
			Type: proto.OutboundRoomCount,
			Data: proto.EventRoomCount{RoomID: event.Room, Count: event.Count},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type: proto.OutboundUserJoined,
			Data: proto.EventUserPresence{RoomID: event.Room, UserID: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type: proto.OutboundUserLeft,
			Data: proto.EventUserPresence{RoomID: event.Room, UserID: event.User},
		}
	case core.EventRoomMessage:
		return proto.Outbound{
			Type: proto.OutboundMessage,
			Data: proto.EventMessage{
				ID:      event.Message.ID,
				RoomID:  event.Message.RoomID,
				UserID:  event.Message.SenderID,
				Message: event.Message.Body,
				TS:      event.Message.CreatedAt.Unix(),
			},
		}
	case core.EventFileUploaded:
		return proto.Outbound{
			Type: proto.OutboundFileUploaded,
			Data: proto.EventFileUploaded{
				FileURL:  event.Upload.FileURL,
				Filename: event.Upload.Filename,
			},
		}
	case core.EventUploadAck:
		return proto.Outbound{
			Type: proto.OutboundUploadAck,
			Data: proto.EventUploadAck{
				UploadID: event.Upload.UploadID,
				Filename: event.Upload.Filename,
				Received: event.Upload.Received,
				Size:     event.Upload.Size,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
