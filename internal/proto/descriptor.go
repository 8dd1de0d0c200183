package proto

import (
	gproto "google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// File describes checkin/auth.proto. It is built at init from the same field
// layout a .proto file would declare:
//
//	message SignupRequest   { string email = 1; string name = 2; string password = 3; }
//	message SigninRequest   { string email = 1; string password = 2; }
//	message TokenResponse   { string access_token = 1; string refresh_token = 2; }
//	message RefreshRequest  {}
//	message RefreshResponse { string access_token = 1; string refresh_token = 2; Profile user = 3; }
//	message LogoutRequest   {}
//	message LogoutResponse  { bool success = 1; }
//	message MeRequest       {}
//	message Profile         { string userId = 1; string email = 2; string name = 3; string role = 4; }
//	message PingRequest     {}
//	message PingResponse    { string status = 1; }
//
// Field names equal the JSON tags of the Go message structs.
var File protoreflect.FileDescriptor

const packageName = "checkin.auth"

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   gproto.String(name),
		Number: gproto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func str(name string, number int32) *descriptorpb.FieldDescriptorProto {
	return field(name, number, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: gproto.String(name), Field: fields}
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	user := field("user", 3, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	user.TypeName = gproto.String("." + packageName + ".Profile")

	return &descriptorpb.FileDescriptorProto{
		Name:    gproto.String("checkin/auth.proto"),
		Package: gproto.String(packageName),
		Syntax:  gproto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("SignupRequest", str("email", 1), str("name", 2), str("password", 3)),
			message("SigninRequest", str("email", 1), str("password", 2)),
			message("TokenResponse", str("access_token", 1), str("refresh_token", 2)),
			message("RefreshRequest"),
			message("RefreshResponse", str("access_token", 1), str("refresh_token", 2), user),
			message("LogoutRequest"),
			message("LogoutResponse", field("success", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
			message("MeRequest"),
			message("Profile", str("userId", 1), str("email", 2), str("name", 3), str("role", 4)),
			message("PingRequest"),
			message("PingResponse", str("status", 1)),
		},
	}
}

func init() {
	fd, err := protodesc.NewFile(fileDescriptorProto(), nil)
	if err != nil {
		panic("checkin/auth.proto: " + err.Error())
	}
	File = fd
}
